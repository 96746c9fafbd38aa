package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/i474232898/weather-diary-sync/internal/diary/hybrid"
	"github.com/sirupsen/logrus"
)

// Scheduler periodically runs the background diary reconciliation.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    *hybrid.Engine
	interval  time.Duration
}

// New creates a new Scheduler.
func New(engine *hybrid.Engine, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		engine:    engine,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		if !s.engine.ShouldSync() {
			return
		}
		logrus.Debug("scheduler: running sync job")

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s.engine.BackgroundSync(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
