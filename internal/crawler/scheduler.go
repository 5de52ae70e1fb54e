package crawler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler manages scheduled crawling jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// NewScheduler creates a new crawler scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob schedules a crawl job to run at specified intervals
func (s *Scheduler) ScheduleJob(
	tag string,
	cronExpr string,
	job func() error,
) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}
