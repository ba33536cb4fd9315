// Package transcript fetches a video's caption track and renders it as
// timestamped plain text.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
)

var ErrNoVideoID = errors.New("no video id provided")

// Cue is one caption line.
type Cue struct {
	StartMs int
	Text    string
}

// Source returns the caption cues of a video in the requested language.
type Source interface {
	Cues(ctx context.Context, videoID, lang string) ([]Cue, error)
}

// Envelope is the JSON shape returned to callers. Exactly one field is set.
type Envelope struct {
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Fetcher struct {
	source Source
	lang   string
}

func NewFetcher(source Source, lang string) *Fetcher {
	if lang == "" {
		lang = "en"
	}
	return &Fetcher{source: source, lang: lang}
}

// Fetch returns the formatted transcript of videoID.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", ErrNoVideoID
	}
	cues, err := f.source.Cues(ctx, videoID, f.lang)
	if err != nil {
		return "", err
	}
	return Format(cues), nil
}

// Envelope wraps Fetch for JSON callers.
func (f *Fetcher) Envelope(ctx context.Context, videoID string) Envelope {
	text, err := f.Fetch(ctx, videoID)
	if err != nil {
		return Envelope{Error: "Failed: " + err.Error()}
	}
	return Envelope{Transcript: text}
}

// Format renders cues as "[M:SS] text" lines. Empty cues are skipped.
func Format(cues []Cue) string {
	lines := make([]string, 0, len(cues))
	for _, c := range cues {
		text := strings.TrimSpace(c.Text)
		if text == "" || c.StartMs < 0 {
			continue
		}
		secs := c.StartMs / 1000
		lines = append(lines, fmt.Sprintf("[%d:%02d] %s", secs/60, secs%60, text))
	}
	return strings.Join(lines, "\n")
}

// YouTubeSource reads caption tracks through the public player API.
type YouTubeSource struct {
	client youtube.Client
}

func NewYouTubeSource(httpClient *http.Client) *YouTubeSource {
	return &YouTubeSource{client: youtube.Client{HTTPClient: httpClient}}
}

func (s *YouTubeSource) Cues(ctx context.Context, videoID, lang string) ([]Cue, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}

	segments, err := s.client.GetTranscriptCtx(ctx, video, lang)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", videoID, err)
	}

	cues := make([]Cue, 0, len(segments))
	for _, seg := range segments {
		cues = append(cues, Cue{StartMs: seg.StartMs, Text: seg.Text})
	}
	return cues, nil
}
