package models

import "time"

// Channel mirrors a row of os_channels. URL is the natural key; ID is assigned
// by the store on first insert.
type Channel struct {
	ID          int64     `json:"id,omitempty" db:"id"`
	URL         string    `json:"url" db:"url"`
	Name        string    `json:"name" db:"name"`
	AvatarURL   string    `json:"avatar_url,omitempty" db:"avatar_url"`
	LastScouted time.Time `json:"last_scouted" db:"last_scouted"`
}
