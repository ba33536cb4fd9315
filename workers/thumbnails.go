package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"outlier_scout/models"
)

const maxThumbnailSize = 10 * 1024 * 1024

// S3Uploader interface for uploading to S3-compatible storage
type S3Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ThumbnailMirror copies outlier thumbnails into our own bucket so they
// survive YouTube rotating its image URLs.
type ThumbnailMirror struct {
	httpClient *http.Client
	uploader   S3Uploader
	limiter    *rate.Limiter

	mu     sync.Mutex
	hashes map[string]string // video id -> content hash of last upload
}

func NewThumbnailMirror(client *http.Client, uploader S3Uploader) *ThumbnailMirror {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ThumbnailMirror{
		httpClient: client,
		uploader:   uploader,
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		hashes:     make(map[string]string),
	}
}

// publicURLer is implemented by uploaders that can address stored objects.
type publicURLer interface {
	PublicURL(key string) string
}

type MirrorResult struct {
	VideoID     string
	S3Key       string
	PublicURL   string
	ContentHash string
	Size        int64
	Skipped     bool
	Error       error
}

// ThumbnailKey is the bucket key for a video's thumbnail.
func ThumbnailKey(videoID string) string {
	return fmt.Sprintf("thumbnails/%s.jpg", videoID)
}

// Mirror uploads every thumbnail in outliers. Failures are logged and
// returned per item; they never stop the batch.
func (m *ThumbnailMirror) Mirror(ctx context.Context, outliers []models.Outlier) []MirrorResult {
	var results []MirrorResult
	var uploaded, skipped, failed int

	for _, o := range outliers {
		if o.VideoID == "" || o.Thumbnail == "" {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			break
		}

		res := m.Process(ctx, o)
		switch {
		case res.Error != nil:
			log.Printf("Thumbnail mirror: failed %s: %v", o.VideoID, res.Error)
			failed++
		case res.Skipped:
			skipped++
		default:
			uploaded++
		}
		results = append(results, res)
	}

	if uploaded > 0 || failed > 0 {
		log.Printf("Thumbnail mirror: uploaded %d, unchanged %d, failed %d", uploaded, skipped, failed)
	}
	return results
}

// Process downloads one thumbnail, hashes it and uploads it unless the same
// bytes were already uploaded for that video.
func (m *ThumbnailMirror) Process(ctx context.Context, o models.Outlier) MirrorResult {
	result := MirrorResult{VideoID: o.VideoID, S3Key: ThumbnailKey(o.VideoID)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.Thumbnail, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailSize))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	m.mu.Lock()
	unchanged := m.hashes[o.VideoID] == result.ContentHash
	m.mu.Unlock()
	if unchanged {
		result.Skipped = true
		return result
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := m.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
		result.Error = fmt.Errorf("upload: %w", err)
		return result
	}

	if p, ok := m.uploader.(publicURLer); ok {
		result.PublicURL = p.PublicURL(result.S3Key)
	}

	m.mu.Lock()
	m.hashes[o.VideoID] = result.ContentHash
	m.mu.Unlock()
	return result
}
