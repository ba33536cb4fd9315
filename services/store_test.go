package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"outlier_scout/models"
)

// memStore is an in-memory Store keyed the same way as the real tables.
type memStore struct {
	mu       sync.Mutex
	channels map[string]*models.Channel
	outliers map[string]models.Outlier
	nextID   int64

	channelErrs  []error
	outlierErr   error
	channelCalls []models.Channel
	batches      [][]models.Outlier
}

func newMemStore() *memStore {
	return &memStore{
		channels: make(map[string]*models.Channel),
		outliers: make(map[string]models.Outlier),
	}
}

func (s *memStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channelCalls = append(s.channelCalls, *ch)
	if len(s.channelErrs) > 0 {
		err := s.channelErrs[0]
		s.channelErrs = s.channelErrs[1:]
		if err != nil {
			return 0, err
		}
	}

	if existing, ok := s.channels[ch.URL]; ok {
		ch.ID = existing.ID
	} else {
		s.nextID++
		ch.ID = s.nextID
	}
	stored := *ch
	s.channels[ch.URL] = &stored
	return ch.ID, nil
}

func (s *memStore) UpsertOutliers(ctx context.Context, outliers []models.Outlier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outlierErr != nil {
		return s.outlierErr
	}
	// Mirrors Postgres rejecting one upsert statement that hits a row twice.
	seen := make(map[string]bool, len(outliers))
	for _, o := range outliers {
		if seen[o.VideoID] {
			return fmt.Errorf("ON CONFLICT DO UPDATE command cannot affect row a second time: %s", o.VideoID)
		}
		seen[o.VideoID] = true
	}
	s.batches = append(s.batches, outliers)
	for _, o := range outliers {
		s.outliers[o.VideoID] = o
	}
	return nil
}

func (s *memStore) ListOutliers(ctx context.Context) ([]models.Outlier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Outlier, 0, len(s.outliers))
	for _, o := range s.outliers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScoutedAt.Equal(out[j].ScoutedAt) {
			return out[i].ScoutedAt.Before(out[j].ScoutedAt)
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out, nil
}

func (s *memStore) UpdateThumbnail(ctx context.Context, videoID, thumbnail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.outliers[videoID]
	if !ok {
		return errors.New("not found")
	}
	o.Thumbnail = thumbnail
	s.outliers[videoID] = o
	return nil
}

func (s *memStore) DeleteOutlier(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outliers, videoID)
	return nil
}

func (s *memStore) DeleteBelowViews(ctx context.Context, floor int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, o := range s.outliers {
		if o.Views < floor {
			delete(s.outliers, id)
			n++
		}
	}
	return n, nil
}
