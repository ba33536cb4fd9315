package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"outlier_scout/config"
	"outlier_scout/models"
	"outlier_scout/scraper"
)

// Runner is the batch entry point the scheduler drives.
type Runner interface {
	Run(ctx context.Context, trigger models.RunTrigger, urls []string) (*scraper.RunSummary, error)
}

type Scheduler struct {
	cfg      config.SchedulerConfig
	channels []string
	runner   Runner
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(cfg config.SchedulerConfig, channels []string, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		channels: channels,
		runner:   runner,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.channels) == 0 {
		return fmt.Errorf("no channels configured for scheduled runs")
	}

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.TriggerNow(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.TriggerNow(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		return fmt.Errorf("no schedule configured: set SCOUT_CRON or SCOUT_INTERVAL")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs the configured channel list once.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	summary, err := s.runner.Run(ctx, models.TriggerSchedule, s.channels)
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
		return
	}
	log.Printf("Scheduled run %s: %d channels, %d failed, %d saved",
		summary.RunUUID, summary.Channels, summary.Failed, summary.Saved)
}
