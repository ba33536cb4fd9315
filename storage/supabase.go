package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"outlier_scout/config"
	"outlier_scout/models"
)

const (
	channelsTable = "os_channels"
	outliersTable = "os_outliers"
	pageSize      = 1000
)

// SupabaseStore talks to the hosted tables through the PostgREST interface.
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
	limiter    *rate.Limiter
}

func NewSupabaseStore(cfg *config.SupabaseConfig, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &SupabaseStore{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		client:     client,
		limiter:    rate.NewLimiter(limit, 5),
	}
}

func (s *SupabaseStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	q := url.Values{"on_conflict": {"url"}}

	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := s.do(ctx, http.MethodPost, channelsTable, q, ch, "resolution=merge-duplicates,return=representation", &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("supabase: upsert channel %s returned no rows", ch.URL)
	}
	ch.ID = rows[0].ID
	return rows[0].ID, nil
}

func (s *SupabaseStore) UpsertOutliers(ctx context.Context, outliers []models.Outlier) error {
	if len(outliers) == 0 {
		return nil
	}
	q := url.Values{"on_conflict": {"video_id"}}
	return s.do(ctx, http.MethodPost, outliersTable, q, outliers, "resolution=merge-duplicates,return=minimal", nil)
}

// ListOutliers pages through the whole table ordered by scouted_at, video_id.
func (s *SupabaseStore) ListOutliers(ctx context.Context) ([]models.Outlier, error) {
	var all []models.Outlier
	for offset := 0; ; offset += pageSize {
		q := url.Values{
			"select": {"*"},
			"order":  {"scouted_at.asc,video_id.asc"},
			"limit":  {strconv.Itoa(pageSize)},
			"offset": {strconv.Itoa(offset)},
		}

		var page []outlierRow
		if err := s.do(ctx, http.MethodGet, outliersTable, q, nil, "", &page); err != nil {
			return nil, err
		}
		for _, row := range page {
			all = append(all, row.toModel())
		}
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (s *SupabaseStore) UpdateThumbnail(ctx context.Context, videoID, thumbnail string) error {
	q := url.Values{"video_id": {"eq." + videoID}}
	body := map[string]string{"thumbnail": thumbnail}
	return s.do(ctx, http.MethodPatch, outliersTable, q, body, "return=minimal", nil)
}

func (s *SupabaseStore) DeleteOutlier(ctx context.Context, videoID string) error {
	q := url.Values{"video_id": {"eq." + videoID}}
	return s.do(ctx, http.MethodDelete, outliersTable, q, nil, "return=minimal", nil)
}

func (s *SupabaseStore) DeleteBelowViews(ctx context.Context, floor int64) (int, error) {
	q := url.Values{
		"views":  {"lt." + strconv.FormatInt(floor, 10)},
		"select": {"video_id"},
	}
	var deleted []struct {
		VideoID string `json:"video_id"`
	}
	if err := s.do(ctx, http.MethodDelete, outliersTable, q, nil, "return=representation", &deleted); err != nil {
		return 0, err
	}
	return len(deleted), nil
}

func (s *SupabaseStore) do(ctx context.Context, method, table string, q url.Values, payload interface{}, prefer string, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	endpoint := s.url + "/rest/v1/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// outlierRow is the read shape of os_outliers. PostgREST renders timestamp
// columns with or without a zone depending on the column type.
type outlierRow struct {
	VideoID      string   `json:"video_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Thumbnail    string   `json:"thumbnail"`
	Views        int64    `json:"views"`
	OutlierScore float64  `json:"outlier_score"`
	ChannelID    *int64   `json:"channel_id"`
	PublishedAt  flexTime `json:"published_at"`
	ScoutedAt    flexTime `json:"scouted_at"`
}

func (r outlierRow) toModel() models.Outlier {
	o := models.Outlier{
		VideoID:      r.VideoID,
		Title:        r.Title,
		URL:          r.URL,
		Thumbnail:    r.Thumbnail,
		Views:        r.Views,
		OutlierScore: r.OutlierScore,
		ChannelID:    r.ChannelID,
	}
	if !r.PublishedAt.IsZero() {
		t := r.PublishedAt.Time
		o.PublishedAt = &t
	}
	o.ScoutedAt = r.ScoutedAt.Time
	return o
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
