package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"outlier_scout/models"
	"outlier_scout/services"
	"outlier_scout/workers"
)

type fakeRenderer struct {
	pages    map[string]string
	rendered []string
	closed   int
}

func (r *fakeRenderer) Render(ctx context.Context, channelURL string) (string, error) {
	r.rendered = append(r.rendered, channelURL)
	html, ok := r.pages[channelURL]
	if !ok {
		return "", fmt.Errorf("%w on %s", ErrNoVideoGrid, channelURL)
	}
	return html, nil
}

func (r *fakeRenderer) Close() error {
	r.closed++
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	channels map[string]int64
	outliers map[string]models.Outlier
}

func newFakeStore() *fakeStore {
	return &fakeStore{channels: map[string]int64{}, outliers: map[string]models.Outlier{}}
}

func (s *fakeStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.channels[ch.URL]
	if !ok {
		id = int64(len(s.channels) + 1)
		s.channels[ch.URL] = id
	}
	return id, nil
}

func (s *fakeStore) UpsertOutliers(ctx context.Context, outliers []models.Outlier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outliers {
		s.outliers[o.VideoID] = o
	}
	return nil
}

func (s *fakeStore) ListOutliers(ctx context.Context) ([]models.Outlier, error) { return nil, nil }
func (s *fakeStore) UpdateThumbnail(ctx context.Context, videoID, thumbnail string) error {
	return nil
}
func (s *fakeStore) DeleteOutlier(ctx context.Context, videoID string) error { return nil }
func (s *fakeStore) DeleteBelowViews(ctx context.Context, floor int64) (int, error) {
	return 0, nil
}

type fakeHistory struct {
	runs []models.ScoutRun
	logs []string
}

func (h *fakeHistory) CreateRun(run *models.ScoutRun) (int64, error) {
	h.runs = append(h.runs, *run)
	return int64(len(h.runs)), nil
}

func (h *fakeHistory) UpdateRun(run *models.ScoutRun) error {
	h.runs[run.ID-1] = *run
	return nil
}

func (h *fakeHistory) Log(runID *int64, level models.LogLevel, message, channelURL string) error {
	h.logs = append(h.logs, string(level)+": "+message)
	return nil
}

type fakeMirror struct {
	calls int
}

func (m *fakeMirror) Mirror(ctx context.Context, outliers []models.Outlier) []workers.MirrorResult {
	m.calls++
	return nil
}

func TestOrchestrator_Run(t *testing.T) {
	renderer := &fakeRenderer{pages: map[string]string{
		"https://www.youtube.com/@test": loadFixture(t, "channel_videos.html"),
	}}
	store := newFakeStore()
	history := &fakeHistory{}
	mirror := &fakeMirror{}

	orch := NewOrchestrator(func(ctx context.Context) (Renderer, error) {
		return renderer, nil
	}, services.NewUpsertClient(store), DefaultOptions(), 0)
	orch.SetHistory(history)
	orch.SetMirror(mirror)

	summary, err := orch.Run(t.Context(), models.TriggerCLI,
		[]string{"https://www.youtube.com/@test/videos", " ", "https://www.youtube.com/@broken/"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Channels)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Saved, "record without a video id is dropped")
	assert.Equal(t, "Test Channel", summary.Results[0].Name)
	assert.Contains(t, summary.Results[1].Error, "video grid")

	assert.Equal(t, []string{"https://www.youtube.com/@test", "https://www.youtube.com/@broken"}, renderer.rendered)
	assert.Equal(t, 1, renderer.closed)
	assert.Equal(t, 1, mirror.calls)

	assert.Contains(t, store.channels, "https://www.youtube.com/@test")
	assert.NotContains(t, store.channels, "https://www.youtube.com/@broken")
	require.Contains(t, store.outliers, "vid00000001")
	require.NotNil(t, store.outliers["vid00000001"].ChannelID)

	require.Len(t, history.runs, 1)
	run := history.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ChannelsFailed)
	assert.Equal(t, 2, run.OutliersSaved)
	assert.NotNil(t, run.FinishedAt)
	assert.NotEmpty(t, history.logs)

	// Same page again: rows update in place.
	_, err = orch.Run(t.Context(), models.TriggerCLI, []string{"https://www.youtube.com/@test"})
	require.NoError(t, err)
	assert.Len(t, store.outliers, 2)
	assert.Len(t, store.channels, 1)
}

func TestOrchestrator_SessionFailure(t *testing.T) {
	history := &fakeHistory{}
	orch := NewOrchestrator(func(ctx context.Context) (Renderer, error) {
		return nil, fmt.Errorf("%w at /tmp/ext", ErrExtensionMissing)
	}, services.NewUpsertClient(newFakeStore()), DefaultOptions(), 0)
	orch.SetHistory(history)

	_, err := orch.Run(t.Context(), models.TriggerHTTP, []string{"https://www.youtube.com/@test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtensionMissing))

	require.Len(t, history.runs, 1)
	assert.Equal(t, models.RunStatusFailed, history.runs[0].Status)
	assert.Equal(t, models.TriggerHTTP, history.runs[0].Trigger)
}

func TestOrchestrator_NoChannels(t *testing.T) {
	orch := NewOrchestrator(func(ctx context.Context) (Renderer, error) {
		t.Fatal("session must not open without channels")
		return nil, nil
	}, services.NewUpsertClient(newFakeStore()), DefaultOptions(), 0)

	_, err := orch.Run(t.Context(), models.TriggerCLI, []string{"", "  "})
	assert.Error(t, err)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	renderer := &fakeRenderer{pages: map[string]string{}}
	orch := NewOrchestrator(func(ctx context.Context) (Renderer, error) {
		return renderer, nil
	}, services.NewUpsertClient(newFakeStore()), DefaultOptions(), 0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := orch.Run(ctx, models.TriggerSchedule, []string{"https://www.youtube.com/@a", "https://www.youtube.com/@b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, renderer.closed)
	assert.Len(t, renderer.rendered, 1)
}
