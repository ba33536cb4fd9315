package identity

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"  My  Video\tTitle ": "my video title",
		"ALL CAPS":            "all caps",
		"":                    "",
	}
	for in, want := range cases {
		if got := NormalizeTitle(in); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScoreBucket(t *testing.T) {
	cases := []struct {
		score float64
		want  int64
	}{
		{2.0, 10},
		{2.15, 11},
		{2.6, 13},
		{1.55, 8},
	}
	for _, c := range cases {
		if got := ScoreBucket(c.score); got != c.want {
			t.Errorf("ScoreBucket(%v) = %d, want %d", c.score, got, c.want)
		}
	}
}

func TestIndex_Seen(t *testing.T) {
	ix := NewIndex()
	ix.Add("Same Title", 2.0)

	if !ix.Seen("same title", 2.15) {
		t.Error("2.15 should collapse into 2.0")
	}
	if !ix.Seen("Same  Title", 2.2) {
		t.Error("gap of exactly 0.2 should collapse")
	}
	if ix.Seen("Same Title", 2.3) {
		t.Error("2.3 should not collapse into 2.0")
	}
	if ix.Seen("Other Title", 2.0) {
		t.Error("different title must not match")
	}
}
