package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"outlier_scout/config"
	"outlier_scout/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Prefer string
	Auth   string
	Body   []byte
}

func newTestSupabase(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*SupabaseStore, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Prefer: r.Header.Get("Prefer"),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store := NewSupabaseStore(&config.SupabaseConfig{URL: srv.URL, ServiceKey: "secret"}, srv.Client())
	return store, &reqs
}

func TestSupabaseStore_UpsertChannel(t *testing.T) {
	store, reqs := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 42, "url": "https://www.youtube.com/@chan", "last_scouted": "2025-01-01T00:00:00"}]`)
	})

	ch := &models.Channel{URL: "https://www.youtube.com/@chan", Name: "Chan", LastScouted: time.Now()}
	id, err := store.UpsertChannel(t.Context(), ch)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), ch.ID)

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/rest/v1/os_channels", req.Path)
	assert.Equal(t, []string{"url"}, req.Query["on_conflict"])
	assert.Contains(t, req.Prefer, "resolution=merge-duplicates")
	assert.Equal(t, "Bearer secret", req.Auth)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.NotContains(t, sent, "avatar_url", "empty avatar must be omitted")
	assert.NotContains(t, sent, "id")
}

func TestSupabaseStore_UpsertOutliers(t *testing.T) {
	store, reqs := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	err := store.UpsertOutliers(t.Context(), []models.Outlier{{VideoID: "a"}, {VideoID: "b"}})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	assert.Equal(t, []string{"video_id"}, (*reqs)[0].Query["on_conflict"])

	var sent []map[string]any
	require.NoError(t, json.Unmarshal((*reqs)[0].Body, &sent))
	require.Len(t, sent, 2)
	assert.Nil(t, sent[0]["channel_id"])

	require.NoError(t, store.UpsertOutliers(t.Context(), nil))
	assert.Len(t, *reqs, 1, "empty batch must not hit the API")
}

func TestSupabaseStore_ErrorStatus(t *testing.T) {
	store, _ := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"column \"avatar_url\" does not exist"}`)
	})

	_, err := store.UpsertChannel(t.Context(), &models.Channel{URL: "u", Name: "n", AvatarURL: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "avatar_url")
}

func TestSupabaseStore_ListOutliersPaginates(t *testing.T) {
	store, reqs := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]any
		n := pageSize
		if r.URL.Query().Get("offset") != "0" {
			n = 2
		}
		for i := 0; i < n; i++ {
			rows = append(rows, map[string]any{
				"video_id":      fmt.Sprintf("v%s-%d", r.URL.Query().Get("offset"), i),
				"views":         10000,
				"outlier_score": 2.5,
				"channel_id":    nil,
				"published_at":  nil,
				"scouted_at":    "2025-03-01T10:00:00.123456",
			})
		}
		json.NewEncoder(w).Encode(rows)
	})

	outliers, err := store.ListOutliers(t.Context())
	require.NoError(t, err)
	assert.Len(t, outliers, pageSize+2)
	assert.Len(t, *reqs, 2)
	assert.Nil(t, outliers[0].PublishedAt)
	assert.Equal(t, 2025, outliers[0].ScoutedAt.Year())
}

func TestSupabaseStore_DeleteBelowViews(t *testing.T) {
	store, reqs := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"video_id":"a"},{"video_id":"b"},{"video_id":"c"}]`)
	})

	n, err := store.DeleteBelowViews(t.Context(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].Method)
	assert.Equal(t, []string{"lt.5000"}, (*reqs)[0].Query["views"])
}

func TestSupabaseStore_UpdateAndDelete(t *testing.T) {
	store, reqs := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, store.UpdateThumbnail(t.Context(), "abc", "https://i.ytimg.com/vi/abc/hqdefault.jpg"))
	require.NoError(t, store.DeleteOutlier(t.Context(), "abc"))

	require.Len(t, *reqs, 2)
	assert.Equal(t, http.MethodPatch, (*reqs)[0].Method)
	assert.Equal(t, []string{"eq.abc"}, (*reqs)[0].Query["video_id"])
	assert.JSONEq(t, `{"thumbnail":"https://i.ytimg.com/vi/abc/hqdefault.jpg"}`, string((*reqs)[0].Body))
	assert.Equal(t, http.MethodDelete, (*reqs)[1].Method)
}

func TestFlexTime(t *testing.T) {
	cases := []string{
		`"2025-03-01T10:00:00Z"`,
		`"2025-03-01T10:00:00.5+00:00"`,
		`"2025-03-01T10:00:00"`,
		`"2025-03-01 10:00:00+00"`,
	}
	for _, c := range cases {
		var ft flexTime
		require.NoError(t, json.Unmarshal([]byte(c), &ft), c)
		assert.Equal(t, 10, ft.Hour(), c)
	}

	var ft flexTime
	require.NoError(t, json.Unmarshal([]byte(`null`), &ft))
	assert.True(t, ft.IsZero())
}
