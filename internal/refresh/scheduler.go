// Package refresh re-runs the fetch pipeline on a fixed period.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one refresh run. It should honour ctx cancellation.
type Task func(ctx context.Context)

// Scheduler runs a Task immediately on Start, then every interval and on
// every Trigger. Runs never overlap: the timer and manual triggers feed the
// same goroutine.
type Scheduler struct {
	interval time.Duration
	task     Task
	log      zerolog.Logger

	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(interval time.Duration, task Task, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		task:     task,
		log:      log.With().Str("component", "refresh").Logger(),
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the refresh loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	// Start already runs the task, so a trigger left over from a stopped
	// run is dropped.
	select {
	case <-s.trigger:
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, "timer")
		case <-s.trigger:
			s.run(ctx, "manual")
			ticker.Reset(s.interval)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.task(ctx)
	s.log.Debug().Str("reason", reason).Dur("took", time.Since(start)).Msg("refreshed")
}

// Trigger requests an immediate refresh. Requests made while one is pending
// are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for a running task to return. It is safe
// to call more than once, and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
