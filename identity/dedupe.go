package identity

import (
	"math"
	"regexp"
	"strings"
)

// ScoreTolerance is the widest score gap two rows with the same title may
// have and still count as the same video.
const ScoreTolerance = 0.2

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// NormalizeTitle lower-cases and collapses whitespace so cosmetic differences
// in the rendered title do not split one video into two keys.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	return multiSpaceRegex.ReplaceAllString(title, " ")
}

// ScoreBucket places a score on the 0.2 grid.
func ScoreBucket(score float64) int64 {
	return int64(math.Round(score * 5))
}

type key struct {
	title  string
	bucket int64
}

// Index remembers kept rows by title and score bucket. Lookups scan the
// neighbouring buckets so scores straddling a bucket edge still match.
type Index struct {
	kept map[key][]float64
}

func NewIndex() *Index {
	return &Index{kept: make(map[key][]float64)}
}

// Seen reports whether a row with an equal normalized title and a score
// within ScoreTolerance has already been added.
func (ix *Index) Seen(title string, score float64) bool {
	norm := NormalizeTitle(title)
	b := ScoreBucket(score)
	for _, nb := range []int64{b - 1, b, b + 1} {
		for _, s := range ix.kept[key{norm, nb}] {
			if math.Abs(s-score) <= ScoreTolerance+1e-9 {
				return true
			}
		}
	}
	return false
}

func (ix *Index) Add(title string, score float64) {
	k := key{NormalizeTitle(title), ScoreBucket(score)}
	ix.kept[k] = append(ix.kept[k], score)
}
