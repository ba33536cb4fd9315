package services

import (
	"context"
	"fmt"
	"log"

	"outlier_scout/identity"
	"outlier_scout/parse"
)

// DedupeResult summarizes one dedupe pass.
type DedupeResult struct {
	Scanned   int
	Removed   int
	Remaining int
}

// Maintenance runs the offline repair jobs against the outliers table.
type Maintenance struct {
	store Store
}

func NewMaintenance(store Store) *Maintenance {
	return &Maintenance{store: store}
}

// Dedupe removes rows whose title matches an earlier row and whose score is
// within identity.ScoreTolerance of it. Rows are visited in store order so the
// first scouted row is the one that survives. Repeated video ids are skipped.
func (m *Maintenance) Dedupe(ctx context.Context) (*DedupeResult, error) {
	outliers, err := m.store.ListOutliers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outliers: %w", err)
	}

	result := &DedupeResult{Scanned: len(outliers)}
	index := identity.NewIndex()
	seenIDs := make(map[string]bool, len(outliers))

	for _, o := range outliers {
		if seenIDs[o.VideoID] {
			continue
		}
		seenIDs[o.VideoID] = true

		if index.Seen(o.Title, o.OutlierScore) {
			if err := m.store.DeleteOutlier(ctx, o.VideoID); err != nil {
				log.Printf("Failed to delete duplicate %s: %v", o.VideoID, err)
				continue
			}
			log.Printf("Removed duplicate %s (%q, %.2fx)", o.VideoID, o.Title, o.OutlierScore)
			result.Removed++
			continue
		}
		index.Add(o.Title, o.OutlierScore)
	}

	result.Remaining = result.Scanned - result.Removed
	log.Printf("Dedupe: scanned %d, removed %d, remaining %d", result.Scanned, result.Removed, result.Remaining)
	return result, nil
}

// RepairThumbnails rewrites empty or placeholder thumbnails to the image
// derived from the video id. Returns the number of rows fixed.
func (m *Maintenance) RepairThumbnails(ctx context.Context) (int, error) {
	outliers, err := m.store.ListOutliers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list outliers: %w", err)
	}

	fixed := 0
	for _, o := range outliers {
		if o.VideoID == "" || !parse.IsBrokenThumbnail(o.Thumbnail) {
			continue
		}
		if err := m.store.UpdateThumbnail(ctx, o.VideoID, parse.ThumbnailURL(o.VideoID)); err != nil {
			log.Printf("Failed to fix thumbnail for %s: %v", o.VideoID, err)
			continue
		}
		fixed++
	}

	log.Printf("Fixed %d thumbnails", fixed)
	return fixed, nil
}

// DefaultPruneFloor is the view count below which PruneLowViews deletes.
const DefaultPruneFloor int64 = 5000

// PruneLowViews deletes every row with fewer than floor views. A floor of
// zero or less means DefaultPruneFloor.
func (m *Maintenance) PruneLowViews(ctx context.Context, floor int64) (int, error) {
	if floor <= 0 {
		floor = DefaultPruneFloor
	}
	n, err := m.store.DeleteBelowViews(ctx, floor)
	if err != nil {
		return 0, fmt.Errorf("delete below %d views: %w", floor, err)
	}
	log.Printf("Removed %d outliers under %d views", n, floor)
	return n, nil
}

// Cleanup repairs thumbnails and then dedupes.
func (m *Maintenance) Cleanup(ctx context.Context) (*DedupeResult, error) {
	if _, err := m.RepairThumbnails(ctx); err != nil {
		return nil, err
	}
	return m.Dedupe(ctx)
}
