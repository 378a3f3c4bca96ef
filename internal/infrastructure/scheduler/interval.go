// Package scheduler drives recurring pipeline runs on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vcscout/internal/ports"
)

// IntervalScheduler runs the job immediately and then on every tick.
type IntervalScheduler struct {
	interval time.Duration
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler for the given period.
func NewIntervalScheduler(interval time.Duration, loc *time.Location, logger *slog.Logger) *IntervalScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &IntervalScheduler{interval: interval, location: loc, logger: logger}
}

// Start runs the job once right away and then on each interval until the
// context is cancelled or Stop is called.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("scheduler job is nil")
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.run(job, time.Now())
		for {
			select {
			case t := <-ticker.C:
				s.run(job, t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}

func (s *IntervalScheduler) run(job func(time.Time), t time.Time) {
	local := t.In(s.location)
	if s.logger != nil {
		s.logger.Info("scheduled run starting", "at", local.Format(time.RFC3339))
	}
	job(local)
}
