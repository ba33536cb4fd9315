package models

import "time"

// Outlier mirrors a row of os_outliers, keyed on VideoID.
type Outlier struct {
	VideoID      string     `json:"video_id" db:"video_id"`
	Title        string     `json:"title" db:"title"`
	URL          string     `json:"url" db:"url"`
	Thumbnail    string     `json:"thumbnail" db:"thumbnail"`
	Views        int64      `json:"views" db:"views"`
	OutlierScore float64    `json:"outlier_score" db:"outlier_score"`
	ChannelID    *int64     `json:"channel_id" db:"channel_id"`
	PublishedAt  *time.Time `json:"published_at" db:"published_at"`
	ScoutedAt    time.Time  `json:"scouted_at" db:"scouted_at"`
}

// VideoNode is one rendered grid item as read back from the DOM, before any
// filtering. MetaLine holds the #metadata-line span texts in order.
type VideoNode struct {
	Title     string
	Permalink string
	Thumbnail string
	MetaLine  []string
	Text      string
}

// ChannelHeader is the channel identity shown above the video grid.
type ChannelHeader struct {
	Name      string
	AvatarURL string
}
