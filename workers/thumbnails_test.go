package workers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"outlier_scout/models"
)

type recordingUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
	types   map[string]string
}

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploads == nil {
		u.uploads = make(map[string][]byte)
		u.types = make(map[string]string)
	}
	u.uploads[key] = b
	u.types[key] = contentType
	return nil
}

func TestThumbnailMirror_Mirror(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes-" + r.URL.Path))
	}))
	defer srv.Close()

	up := &recordingUploader{}
	m := NewThumbnailMirror(srv.Client(), up)

	outliers := []models.Outlier{
		{VideoID: "a", Thumbnail: srv.URL + "/a.jpg"},
		{VideoID: "b", Thumbnail: srv.URL + "/missing.jpg"},
		{VideoID: "", Thumbnail: srv.URL + "/x.jpg"},
		{VideoID: "c", Thumbnail: ""},
	}

	results := m.Mirror(t.Context(), outliers)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Error)
	assert.Equal(t, "thumbnails/a.jpg", results[0].S3Key)
	assert.Len(t, results[0].ContentHash, 64)
	assert.Error(t, results[1].Error)

	assert.Equal(t, []byte("jpeg-bytes-/a.jpg"), up.uploads["thumbnails/a.jpg"])
	assert.Equal(t, "image/jpeg", up.types["thumbnails/a.jpg"])

	again := m.Mirror(t.Context(), outliers[:1])
	require.Len(t, again, 1)
	assert.True(t, again[0].Skipped, "unchanged bytes are not uploaded twice")
}

func TestThumbnailKey(t *testing.T) {
	assert.Equal(t, "thumbnails/dQw4w9WgXcQ.jpg", ThumbnailKey("dQw4w9WgXcQ"))
}

type publicUploader struct {
	recordingUploader
}

func (u *publicUploader) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func TestThumbnailMirror_PublicURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	m := NewThumbnailMirror(srv.Client(), &publicUploader{})
	res := m.Process(t.Context(), models.Outlier{VideoID: "z", Thumbnail: srv.URL + "/z.jpg"})
	require.NoError(t, res.Error)
	assert.Equal(t, "https://cdn.example.com/thumbnails/z.jpg", res.PublicURL)
}
