package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"attendance-bridge/internal/attendance/domain"
	"attendance-bridge/internal/attendance/usecase"
	"attendance-bridge/pkg/logging"

	"github.com/stretchr/testify/assert"
)

type countingPoll struct {
	cycles  atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
	err     error
}

func (p *countingPoll) RunCycle(ctx context.Context) (*usecase.CycleReport, error) {
	if p.running.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.running.Add(-1)
	p.cycles.Add(1)
	time.Sleep(2 * time.Millisecond)
	return &usecase.CycleReport{}, p.err
}

func (p *countingPoll) SendTestSummary(ctx context.Context, date time.Time) (*usecase.TestSummaryReport, error) {
	return &usecase.TestSummaryReport{}, nil
}

func (p *countingPoll) State(ctx context.Context) (*domain.State, error) {
	return domain.NewState(), nil
}

func TestPollScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	poll := &countingPoll{err: errors.New("hr backend down")}
	s := NewPollScheduler(poll, 5*time.Millisecond, logging.Discard())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return poll.cycles.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	stopped := poll.cycles.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, poll.cycles.Load())
	assert.False(t, poll.overlap.Load())
}

func TestPollScheduler_StopsOnContextCancel(t *testing.T) {
	poll := &countingPoll{}
	s := NewPollScheduler(poll, time.Hour, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return poll.cycles.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	// Stop after cancellation must not block or panic.
	s.Stop()
	s.Stop()
}

func TestPollScheduler_StopWithoutStart(t *testing.T) {
	poll := &countingPoll{}
	s := NewPollScheduler(poll, time.Millisecond, logging.Discard())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a scheduler that never started")
	}

	// Start after Stop does not run cycles.
	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, poll.cycles.Load())
}
