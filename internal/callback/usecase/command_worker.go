package usecase

import (
	"context"
	"sync"
	"time"

	"attendance-bridge/internal/callback/domain"
	"attendance-bridge/pkg/logging"
)

// CommandHandler produces the reply text for a chat command.
type CommandHandler interface {
	Handle(ctx context.Context, fromUser, content string) (string, error)
}

// Dispatcher delivers a text message to a chat user.
type Dispatcher interface {
	Send(ctx context.Context, toUser, content string) error
}

// FailureReply is sent when a command could not be processed.
const FailureReply = "Sorry, your request could not be processed. Please try again later."

const jobTimeout = 30 * time.Second

// CommandWorkerService answers chat commands in the background so the
// webhook can acknowledge immediately.
type CommandWorkerService struct {
	handler     CommandHandler
	dispatcher  Dispatcher
	log         logging.Logger
	jobQueue    chan domain.CommandJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// NewCommandWorkerService creates a new command worker service
func NewCommandWorkerService(
	handler CommandHandler,
	dispatcher Dispatcher,
	workerCount int,
	queueSize int,
	log logging.Logger,
) *CommandWorkerService {
	if workerCount <= 0 {
		workerCount = 3
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &CommandWorkerService{
		handler:     handler,
		dispatcher:  dispatcher,
		log:         log.With("component", "command_worker"),
		jobQueue:    make(chan domain.CommandJob, queueSize),
		workerCount: workerCount,
	}
}

// Start starts the command workers
func (s *CommandWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}

	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	s.log.Info(context.Background(), "command workers started", "workers", s.workerCount)
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
func (s *CommandWorkerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.jobQueue)
	s.mu.Unlock()

	s.workerWg.Wait()
	s.log.Info(context.Background(), "command workers stopped")
}

// QueueJob adds a job to the queue without blocking. It returns false when
// the queue is full or the service is stopped.
func (s *CommandWorkerService) QueueJob(job domain.CommandJob) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return false
	}
	select {
	case s.jobQueue <- job:
		return true
	default:
		return false
	}
}

func (s *CommandWorkerService) worker(id int) {
	defer s.workerWg.Done()

	for job := range s.jobQueue {
		s.processJob(job)
	}

	s.log.Debug(context.Background(), "command worker exited", "worker", id)
}

// processJob answers one command. A failure is reported to the sender on a
// best-effort basis; the callback was already acknowledged.
func (s *CommandWorkerService) processJob(job domain.CommandJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	reply, err := s.handler.Handle(ctx, job.FromUser, job.Content)
	if err != nil {
		s.log.Error(ctx, "command failed", "msg_id", job.MessageID, "user", job.FromUser, "error", err)
		reply = FailureReply
	}
	if reply == "" {
		return
	}

	if err := s.dispatcher.Send(ctx, job.FromUser, reply); err != nil {
		s.log.Error(ctx, "reply failed", "msg_id", job.MessageID, "user", job.FromUser, "error", err)
		return
	}
	s.log.Debug(ctx, "reply sent", "msg_id", job.MessageID, "user", job.FromUser)
}
