// Package scheduler runs the periodic jobs: the scoring batch and the
// daily price sync.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps a cron runner. Each registered job is guarded by its own
// mutex so a slow run is skipped rather than overlapped; the scoring batch
// in particular must never run concurrently with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a scheduler
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers handler under the given cron schedule. The handler
// receives a background context that is not tied to the caller.
func (s *Scheduler) AddJob(name, schedule string, handler func(ctx context.Context) error) error {
	var mu sync.Mutex

	_, err := s.cron.AddFunc(schedule, func() {
		if !mu.TryLock() {
			s.logger.Warn().Str("job", name).Msg("Previous run still in progress, skipping")
			return
		}
		defer mu.Unlock()

		s.logger.Info().Str("job", name).Msg("Job starting")
		if err := handler(context.Background()); err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("Job failed")
			return
		}
		s.logger.Info().Str("job", name).Msg("Job finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s (%q): %w", name, schedule, err)
	}

	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
