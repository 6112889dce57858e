package jobs

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"trendboard/internal/models"
)

// Runner runs one sync. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, trigger string) (*models.SyncResult, error)
}

// Scheduler triggers a scheduled sync run at every occurrence of a weekly schedule.
type Scheduler struct {
	runner   Runner
	schedule Schedule
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewScheduler creates a new weekly scheduler.
func NewScheduler(runner Runner, schedule Schedule, clock clockwork.Clock, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		clock:    clock,
		log:      log.With("component", "scheduler"),
	}
}

// Start blocks, running a sync at each scheduled instant until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started",
		"weekday", s.schedule.Weekday,
		"hour", s.schedule.Hour,
		"timezone", s.schedule.Location.String(),
	)

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)
		s.log.Info("next sync scheduled", "at", next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped")
			return
		case <-timer.Chan():
		}

		if _, err := s.runner.Run(ctx, models.TriggerScheduled); err != nil {
			s.log.Error("scheduled sync failed", "error", err)
		}
	}
}
