package services

import (
	"context"

	"outlier_scout/models"
)

// Store is the persistence surface shared by the REST and direct-database
// backends.
type Store interface {
	UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error)
	UpsertOutliers(ctx context.Context, outliers []models.Outlier) error
	ListOutliers(ctx context.Context) ([]models.Outlier, error)
	UpdateThumbnail(ctx context.Context, videoID, thumbnail string) error
	DeleteOutlier(ctx context.Context, videoID string) error
	DeleteBelowViews(ctx context.Context, floor int64) (int, error)
}
