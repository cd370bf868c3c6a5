package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// InstanceQueue is the worker-side view of the export queue.
type InstanceQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportInstance, error)
	Schedule(instance domain.ExportInstance, due time.Time) error
	PromoteDue(now time.Time) (int, error)
}

// InstanceExecutor runs one export instance.
type InstanceExecutor interface {
	Execute(ctx context.Context, instance domain.ExportInstance) error
}

// PollingScheduler is the worker loop: it drains the pending queue,
// promotes deferred runs whose time has come, and pushes back runs
// whose export type is busy on another worker.
type PollingScheduler struct {
	repo         usecases.ExportRepository
	queue        InstanceQueue
	executor     InstanceExecutor
	pollInterval time.Duration
	retryDelay   time.Duration
	workerID     string
}

func NewPollingScheduler(repo usecases.ExportRepository, queue InstanceQueue,
	executor InstanceExecutor, pollInterval time.Duration, workerID string) *PollingScheduler {
	return &PollingScheduler{
		repo:         repo,
		queue:        queue,
		executor:     executor,
		pollInterval: pollInterval,
		retryDelay:   30 * time.Second,
		workerID:     workerID,
	}
}

// Start runs the worker loop until the context is cancelled.
func (s *PollingScheduler) Start(ctx context.Context) {
	log.Printf("[%s] Starting export worker (poll interval: %v)", s.workerID, s.pollInterval)

	for {
		if ctx.Err() != nil {
			log.Printf("[%s] Worker context cancelled, stopping", s.workerID)
			return
		}

		if promoted, err := s.queue.PromoteDue(time.Now().UTC()); err != nil {
			log.Printf("[%s] Error promoting deferred exports: %v", s.workerID, err)
		} else if promoted > 0 {
			log.Printf("[%s] Promoted %d deferred exports", s.workerID, promoted)
		}

		instance, err := s.queue.Dequeue(ctx, s.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[%s] Error dequeuing export: %v", s.workerID, err)
			time.Sleep(s.pollInterval)
			continue
		}
		if instance == nil {
			continue
		}

		s.process(ctx, *instance)
	}
}

func (s *PollingScheduler) process(ctx context.Context, instance domain.ExportInstance) {
	// Reload the instance; it may have been cancelled or already run.
	current, err := s.repo.FindByID(instance.ID)
	if err != nil {
		log.Printf("[%s] Dropping queued export %s: %v", s.workerID, instance.ID, err)
		return
	}
	if current.Status != domain.StatusWaiting {
		log.Printf("[%s] Export %s is no longer waiting (status: %s), skipping",
			s.workerID, current.ID, current.Status)
		return
	}

	log.Printf("[%s] Executing export: %s (%s)", s.workerID, current.ExportType, current.ID)
	err = s.executor.Execute(ctx, current)
	if errors.Is(err, domain.ErrAlreadyRunning) {
		// Another worker holds the type lock; try again shortly.
		due := time.Now().UTC().Add(s.retryDelay)
		if err := s.queue.Schedule(current, due); err != nil {
			log.Printf("[%s] Failed to defer export %s: %v", s.workerID, current.ID, err)
		} else {
			log.Printf("[%s] Deferred export %s until %s", s.workerID, current.ID, due.Format(time.RFC3339))
		}
		return
	}
	if err != nil {
		log.Printf("[%s] Export %s failed: %v", s.workerID, current.ID, err)
	}
}
