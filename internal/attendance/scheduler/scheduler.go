package scheduler

import (
	"context"
	"sync"
	"time"

	"attendance-bridge/internal/attendance/usecase"
	"attendance-bridge/pkg/logging"
)

// PollScheduler runs poll cycles on a fixed interval. A cycle that runs long
// delays the next tick instead of overlapping it.
type PollScheduler struct {
	poll     usecase.PollUsecase
	log      logging.Logger
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPollScheduler creates a new scheduler
func NewPollScheduler(poll usecase.PollUsecase, interval time.Duration, log logging.Logger) *PollScheduler {
	return &PollScheduler{
		poll:     poll,
		log:      log.With("component", "scheduler"),
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop. It is a no-op once started or stopped.
func (s *PollScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	s.log.Info(ctx, "starting poll scheduler", "interval", s.interval.String())

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle(ctx)
			case <-s.stopChan:
				s.log.Info(ctx, "poll scheduler stopped")
				return
			case <-ctx.Done():
				s.log.Info(ctx, "poll scheduler stopped", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for the running cycle. It
// returns at once if the scheduler was never started.
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

func (s *PollScheduler) runCycle(ctx context.Context) {
	if _, err := s.poll.RunCycle(ctx); err != nil {
		s.log.Error(ctx, "poll cycle failed", "error", err)
	}
}
