package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"outlier_scout/models"
)

// PostgresStore writes the same os_channels / os_outliers tables over a
// direct connection to the hosted database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// UpsertChannel leaves avatar_url out of the statement entirely when empty so
// the reduced-field retry works against tables without that column.
func (s *PostgresStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	var query string
	args := []any{ch.URL, ch.Name, ch.LastScouted}

	if ch.AvatarURL != "" {
		query = `
			INSERT INTO os_channels (url, name, last_scouted, avatar_url)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (url) DO UPDATE SET
				name = EXCLUDED.name,
				last_scouted = EXCLUDED.last_scouted,
				avatar_url = EXCLUDED.avatar_url
			RETURNING id`
		args = append(args, ch.AvatarURL)
	} else {
		query = `
			INSERT INTO os_channels (url, name, last_scouted)
			VALUES ($1, $2, $3)
			ON CONFLICT (url) DO UPDATE SET
				name = EXCLUDED.name,
				last_scouted = EXCLUDED.last_scouted
			RETURNING id`
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&ch.ID); err != nil {
		return 0, err
	}
	return ch.ID, nil
}

// UpsertOutliers sends the whole batch in one round trip. The batch runs
// inside a transaction so it is all-or-nothing like the REST upsert.
func (s *PostgresStore) UpsertOutliers(ctx context.Context, outliers []models.Outlier) error {
	if len(outliers) == 0 {
		return nil
	}

	query := `
		INSERT INTO os_outliers (
			video_id, title, url, thumbnail, views, outlier_score,
			channel_id, published_at, scouted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (video_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			thumbnail = EXCLUDED.thumbnail,
			views = EXCLUDED.views,
			outlier_score = EXCLUDED.outlier_score,
			channel_id = EXCLUDED.channel_id,
			published_at = EXCLUDED.published_at,
			scouted_at = EXCLUDED.scouted_at`

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range outliers {
			batch.Queue(query,
				o.VideoID, o.Title, o.URL, o.Thumbnail, o.Views, o.OutlierScore,
				o.ChannelID, o.PublishedAt, o.ScoutedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) ListOutliers(ctx context.Context) ([]models.Outlier, error) {
	query := `
		SELECT video_id, COALESCE(title, ''), COALESCE(url, ''), COALESCE(thumbnail, ''),
			COALESCE(views, 0), COALESCE(outlier_score, 0), channel_id, published_at,
			COALESCE(scouted_at, to_timestamp(0))
		FROM os_outliers
		ORDER BY scouted_at ASC NULLS FIRST, video_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outliers []models.Outlier
	for rows.Next() {
		var o models.Outlier
		if err := rows.Scan(&o.VideoID, &o.Title, &o.URL, &o.Thumbnail,
			&o.Views, &o.OutlierScore, &o.ChannelID, &o.PublishedAt, &o.ScoutedAt); err != nil {
			return nil, err
		}
		outliers = append(outliers, o)
	}
	return outliers, rows.Err()
}

func (s *PostgresStore) UpdateThumbnail(ctx context.Context, videoID, thumbnail string) error {
	_, err := s.pool.Exec(ctx, `UPDATE os_outliers SET thumbnail = $2 WHERE video_id = $1`, videoID, thumbnail)
	return err
}

func (s *PostgresStore) DeleteOutlier(ctx context.Context, videoID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM os_outliers WHERE video_id = $1`, videoID)
	return err
}

func (s *PostgresStore) DeleteBelowViews(ctx context.Context, floor int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM os_outliers WHERE views < $1`, floor)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
