package scraper

import "testing"

func TestCanonicalChannelURL(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/@chan":                       "https://www.youtube.com/@chan",
		" https://www.youtube.com/@chan/ ":                    "https://www.youtube.com/@chan",
		"https://www.youtube.com/@chan/videos":                "https://www.youtube.com/@chan",
		"https://www.youtube.com/@chan/videos?view=0&sort=dd": "https://www.youtube.com/@chan",
		"https://www.youtube.com/channel/UC123/shorts/":       "https://www.youtube.com/channel/UC123",
		"https://www.youtube.com/c/Name#about":                "https://www.youtube.com/c/Name",
		"":                                                    "",
	}
	for in, want := range cases {
		if got := CanonicalChannelURL(in); got != want {
			t.Errorf("CanonicalChannelURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVideosURL(t *testing.T) {
	want := "https://www.youtube.com/@chan/videos?view=0&sort=dd&shelf_id=0"
	for _, in := range []string{"https://www.youtube.com/@chan", "https://www.youtube.com/@chan/videos/"} {
		if got := VideosURL(in); got != want {
			t.Errorf("VideosURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitChannelList(t *testing.T) {
	got := SplitChannelList("https://www.youtube.com/@a, ,https://www.youtube.com/@b ,")
	if len(got) != 2 || got[0] != "https://www.youtube.com/@a" || got[1] != "https://www.youtube.com/@b" {
		t.Fatalf("SplitChannelList = %v", got)
	}
}
