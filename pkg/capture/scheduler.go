package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler flushes a pipeline on a cron schedule.
type Scheduler struct {
	pipeline *Pipeline
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. schedule accepts standard cron
// expressions and descriptors such as "@every 5m".
func NewScheduler(pipeline *Pipeline, schedule string) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "capture.scheduler"),
	}
}

// Start schedules periodic flushes until ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.flush(ctx) }); err != nil {
		return fmt.Errorf("invalid flush schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("capture flush scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) flush(ctx context.Context) {
	n, err := s.pipeline.Flush(ctx)
	if err != nil {
		// Already logged by the pipeline.
		return
	}
	if n == 0 {
		s.logger.Debug("scheduled flush found no records")
	}
}

// Stop stops the scheduler and waits for a running flush to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("capture flush scheduler stopped")
}

// NextRun returns the next scheduled flush, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
