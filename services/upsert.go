package services

import (
	"context"
	"log"
	"time"

	"outlier_scout/models"
)

// UpsertClient writes channels and their outliers. Failures are logged and
// reported through the return values; nothing here rolls back.
type UpsertClient struct {
	store Store
	now   func() time.Time
}

func NewUpsertClient(store Store) *UpsertClient {
	return &UpsertClient{store: store, now: time.Now}
}

// UpsertChannel inserts or refreshes the channel row keyed on url and returns
// its id, or nil when the channel could not be written. A failed first
// attempt is retried once without the avatar.
func (c *UpsertClient) UpsertChannel(ctx context.Context, url, name, avatarURL string) *int64 {
	if name == "" {
		log.Printf("Skipping channel upsert for %s: no channel name", url)
		return nil
	}

	ch := &models.Channel{
		URL:         url,
		Name:        name,
		AvatarURL:   avatarURL,
		LastScouted: c.now(),
	}

	id, err := c.store.UpsertChannel(ctx, ch)
	if err != nil && avatarURL != "" {
		log.Printf("Channel upsert failed for %s, retrying without avatar: %v", url, err)
		ch.AvatarURL = ""
		id, err = c.store.UpsertChannel(ctx, ch)
	}
	if err != nil {
		log.Printf("Channel upsert failed for %s: %v", url, err)
		return nil
	}
	return &id
}

// UpsertOutliers drops records without a video id, stamps the rest with the
// channel reference and scout time, collapses repeated video ids and writes
// them in one batch. It returns the number of distinct rows written.
func (c *UpsertClient) UpsertOutliers(ctx context.Context, records []models.Outlier, channelID *int64) int {
	now := c.now()

	// A single upsert statement cannot touch the same video_id twice, so
	// repeats collapse here: later values win, first position is kept.
	batch := make([]models.Outlier, 0, len(records))
	index := make(map[string]int, len(records))
	var missing int
	for _, r := range records {
		if r.VideoID == "" {
			missing++
			continue
		}
		r.ChannelID = channelID
		r.ScoutedAt = now
		if i, ok := index[r.VideoID]; ok {
			batch[i] = r
			continue
		}
		index[r.VideoID] = len(batch)
		batch = append(batch, r)
	}
	if missing > 0 {
		log.Printf("Dropped %d outliers without a video id", missing)
	}
	if len(batch) == 0 {
		return 0
	}

	if err := c.store.UpsertOutliers(ctx, batch); err != nil {
		log.Printf("Outlier upsert failed (%d records): %v", len(batch), err)
		return 0
	}
	return len(batch)
}
