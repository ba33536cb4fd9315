package scraper

import (
	"strings"
	"time"

	"outlier_scout/config"
	"outlier_scout/models"
	"outlier_scout/parse"
)

// Options control which grid items count as outliers.
type Options struct {
	MinScore          float64
	MinViews          int64
	ExtractPublished  bool
	ThumbnailFallback bool
}

func DefaultOptions() Options {
	return Options{
		MinScore:          1.5,
		MinViews:          5000,
		ExtractPublished:  true,
		ThumbnailFallback: true,
	}
}

func OptionsFromConfig(cfg config.ScoutConfig) Options {
	return Options{
		MinScore:          cfg.MinScore,
		MinViews:          cfg.MinViews,
		ExtractPublished:  cfg.ExtractPublished,
		ThumbnailFallback: cfg.ThumbnailFallback,
	}
}

// Extract keeps the nodes carrying a multiplier strictly above MinScore and at
// least MinViews views (a zero floor disables the view check). Output keeps
// DOM order. Nodes without a video id are still returned.
func Extract(nodes []models.VideoNode, opts Options, now time.Time) []models.Outlier {
	var out []models.Outlier
	for _, n := range nodes {
		score, ok := parse.Multiplier(n.Text)
		if !ok || score <= opts.MinScore {
			continue
		}

		views := parse.ViewCount(firstContaining(n.MetaLine, "views"))
		if opts.MinViews > 0 && views < opts.MinViews {
			continue
		}

		videoID := parse.VideoID(n.Permalink)
		o := models.Outlier{
			VideoID:      videoID,
			Title:        n.Title,
			URL:          n.Permalink,
			Thumbnail:    n.Thumbnail,
			Views:        views,
			OutlierScore: score,
		}

		if opts.ExtractPublished {
			if ago := firstContaining(n.MetaLine, "ago"); ago != "" {
				if t, ok := parse.RelativeDate(ago, now); ok {
					o.PublishedAt = &t
				}
			}
		}

		if opts.ThumbnailFallback && videoID != "" && parse.IsBrokenThumbnail(o.Thumbnail) {
			o.Thumbnail = parse.ThumbnailURL(videoID)
		}

		out = append(out, o)
	}
	return out
}

func firstContaining(spans []string, substr string) string {
	for _, s := range spans {
		if strings.Contains(s, substr) {
			return s
		}
	}
	return ""
}
