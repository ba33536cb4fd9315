package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"outlier_scout/models"
	"outlier_scout/services"
	"outlier_scout/workers"
)

// Renderer produces the captured HTML of a channel's videos tab.
type Renderer interface {
	Render(ctx context.Context, channelURL string) (string, error)
	Close() error
}

// OpenFunc starts a browser session for one batch.
type OpenFunc func(ctx context.Context) (Renderer, error)

// RunHistory records batches and their log lines.
type RunHistory interface {
	CreateRun(run *models.ScoutRun) (int64, error)
	UpdateRun(run *models.ScoutRun) error
	Log(runID *int64, level models.LogLevel, message, channelURL string) error
}

// Mirror receives the outliers saved for a channel.
type Mirror interface {
	Mirror(ctx context.Context, outliers []models.Outlier) []workers.MirrorResult
}

type ChannelResult struct {
	URL   string `json:"url"`
	Name  string `json:"name,omitempty"`
	Found int    `json:"found"`
	Saved int    `json:"saved"`
	Error string `json:"error,omitempty"`
}

type RunSummary struct {
	RunUUID  string          `json:"run_uuid"`
	Channels int             `json:"channels"`
	Failed   int             `json:"failed"`
	Found    int             `json:"found"`
	Saved    int             `json:"saved"`
	Results  []ChannelResult `json:"results"`
}

// Orchestrator runs batches of channels through one browser session at a
// time. Concurrent callers queue on the mutex.
type Orchestrator struct {
	mu       sync.Mutex
	open     OpenFunc
	upsert   *services.UpsertClient
	opts     Options
	tabDelay time.Duration
	now      func() time.Time

	history RunHistory
	mirror  Mirror
}

func NewOrchestrator(open OpenFunc, upsert *services.UpsertClient, opts Options, tabDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		open:     open,
		upsert:   upsert,
		opts:     opts,
		tabDelay: tabDelay,
		now:      time.Now,
	}
}

func (o *Orchestrator) SetHistory(history RunHistory) {
	o.history = history
}

func (o *Orchestrator) SetMirror(mirror Mirror) {
	o.mirror = mirror
}

// Run scouts every channel in urls. Per-channel failures are logged and
// counted; only a session that cannot start or a cancelled context fails
// the batch.
func (o *Orchestrator) Run(ctx context.Context, trigger models.RunTrigger, urls []string) (*RunSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var channels []string
	for _, u := range urls {
		if c := CanonicalChannelURL(u); c != "" {
			channels = append(channels, c)
		}
	}
	if len(channels) == 0 {
		return nil, errors.New("no channel urls given")
	}

	summary := &RunSummary{RunUUID: uuid.NewString(), Channels: len(channels)}
	run := &models.ScoutRun{
		RunUUID:       summary.RunUUID,
		Trigger:       trigger,
		StartedAt:     o.now(),
		Status:        models.RunStatusRunning,
		ChannelsTotal: len(channels),
	}
	o.startRun(run)
	defer o.finishRun(run, summary)

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting batch scout for %d channels", len(channels)), "")

	session, err := o.open(ctx)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run, models.LogLevelError, fmt.Sprintf("Session failed: %v", err), "")
		return summary, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("Session close: %v", err)
		}
	}()

	for i, channelURL := range channels {
		if i > 0 {
			if err := sleep(ctx, o.tabDelay); err != nil {
				run.Status = models.RunStatusFailed
				return summary, err
			}
		}

		o.log(run, models.LogLevelInfo, fmt.Sprintf("Processing (%d/%d)", i+1, len(channels)), channelURL)
		res := o.scoutChannel(ctx, session, channelURL)
		summary.Results = append(summary.Results, res)
		summary.Found += res.Found
		summary.Saved += res.Saved

		switch {
		case res.Error != "":
			summary.Failed++
			run.ErrorsCount++
			o.log(run, models.LogLevelError, res.Error, channelURL)
		case res.Found > 0 && res.Saved == 0:
			o.log(run, models.LogLevelWarn, fmt.Sprintf("Found %d outliers but none were saved", res.Found), channelURL)
		default:
			o.log(run, models.LogLevelInfo, fmt.Sprintf("Found %d outliers, saved %d", res.Found, res.Saved), channelURL)
		}

		if err := ctx.Err(); err != nil {
			run.Status = models.RunStatusFailed
			return summary, err
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(run, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d channels, %d failed, %d outliers found, %d saved",
			summary.Channels, summary.Failed, summary.Found, summary.Saved), "")
	return summary, nil
}

func (o *Orchestrator) scoutChannel(ctx context.Context, session Renderer, channelURL string) ChannelResult {
	res := ChannelResult{URL: channelURL}

	html, err := session.Render(ctx, channelURL)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	page, err := ParsePage(VideosURL(channelURL), html)
	if err != nil {
		res.Error = fmt.Sprintf("extract: %v", err)
		return res
	}
	res.Name = page.Header.Name

	outliers := Extract(page.Videos, o.opts, o.now())
	res.Found = len(outliers)

	channelID := o.upsert.UpsertChannel(ctx, channelURL, page.Header.Name, page.Header.AvatarURL)
	res.Saved = o.upsert.UpsertOutliers(ctx, outliers, channelID)

	if o.mirror != nil && res.Saved > 0 {
		for _, m := range o.mirror.Mirror(ctx, outliers) {
			if m.Error == nil && m.PublicURL != "" {
				log.Printf("Mirrored %s to %s", m.VideoID, m.PublicURL)
			}
		}
	}
	return res
}

func (o *Orchestrator) startRun(run *models.ScoutRun) {
	if o.history == nil {
		return
	}
	id, err := o.history.CreateRun(run)
	if err != nil {
		log.Printf("Warning: failed to record run: %v", err)
		return
	}
	run.ID = id
}

func (o *Orchestrator) finishRun(run *models.ScoutRun, summary *RunSummary) {
	finished := o.now()
	run.FinishedAt = &finished
	run.ChannelsFailed = summary.Failed
	run.OutliersFound = summary.Found
	run.OutliersSaved = summary.Saved
	if run.Status == models.RunStatusRunning {
		run.Status = models.RunStatusFailed
	}

	if o.history == nil || run.ID == 0 {
		return
	}
	if err := o.history.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run: %v", err)
	}
}

func (o *Orchestrator) log(run *models.ScoutRun, level models.LogLevel, message, channelURL string) {
	if channelURL != "" {
		log.Printf("[%s] %s: %s", level, channelURL, message)
	} else {
		log.Printf("[%s] %s", level, message)
	}
	if o.history == nil || run.ID == 0 {
		return
	}
	if err := o.history.Log(&run.ID, level, message, channelURL); err != nil {
		log.Printf("Warning: failed to persist log line: %v", err)
	}
}
