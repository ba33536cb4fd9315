// Package parse turns the human-readable counters YouTube renders
// ("12K views", "3 days ago", "2.4x") into numbers and timestamps.
//
// None of these functions fail loudly. Malformed input yields a zero value
// or a false flag and the caller decides whether to keep the record.
package parse

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const thumbnailTemplate = "https://i.ytimg.com/vi/%s/hqdefault.jpg"

var (
	nonNumericRegex  = regexp.MustCompile(`[^0-9.]`)
	leadingNumRegex  = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)
	leadingIntRegex  = regexp.MustCompile(`\d+`)
	multiplierRegex  = regexp.MustCompile(`(\d+\.\d+)x`)
	brokenThumbMarks = []string{"data:image", "spacer", "placeholder"}
)

// ViewCount parses strings like "12K views" or "1,234 views".
func ViewCount(text string) int64 {
	digits := nonNumericRegex.ReplaceAllString(text, "")
	num := leadingNumRegex.FindString(digits)
	if num == "" {
		return 0
	}
	base, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}

	upper := strings.ToUpper(text)
	multiplier := 1.0
	switch {
	case strings.Contains(upper, "K"):
		multiplier = 1_000
	case strings.Contains(upper, "M"):
		multiplier = 1_000_000
	}

	return int64(math.Round(base * multiplier))
}

// RelativeDate converts "3 days ago" into an absolute time relative to now.
// The second return is false when no known unit is present.
func RelativeDate(text string, now time.Time) (time.Time, bool) {
	n := 0
	if m := leadingIntRegex.FindString(text); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			n = v
		}
	}

	switch {
	case strings.Contains(text, "hour"):
		return now.Add(-time.Duration(n) * time.Hour), true
	case strings.Contains(text, "day"):
		return now.AddDate(0, 0, -n), true
	case strings.Contains(text, "week"):
		return now.AddDate(0, 0, -n*7), true
	case strings.Contains(text, "month"):
		return now.AddDate(0, -n, 0), true
	case strings.Contains(text, "year"):
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// Multiplier finds the first "<n>.<n>x" badge value in text.
func Multiplier(text string) (float64, bool) {
	m := multiplierRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// VideoID returns the v query parameter of a watch permalink.
func VideoID(permalink string) string {
	if permalink == "" {
		return ""
	}
	u, err := url.Parse(permalink)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// ThumbnailURL builds the canonical hqdefault thumbnail for a video.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf(thumbnailTemplate, videoID)
}

// IsBrokenThumbnail reports whether src is missing, a lazy-load spacer or
// placeholder, or an inline data URI.
func IsBrokenThumbnail(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	if s == "" {
		return true
	}
	for _, mark := range brokenThumbMarks {
		if strings.Contains(s, mark) {
			return true
		}
	}
	return false
}
