package executor

import (
	"context"
	"fmt"
	"log"

	"sierra-export/internal/core/domain"
)

// LockManager defines the interface for distributed locking
type LockManager interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	IsLocked(ctx context.Context, key string) (bool, error)
}

// DistributedExportExecutor wraps an ExportExecutor with distributed
// locking keyed on the export type, so two workers never run the same
// type concurrently.
type DistributedExportExecutor struct {
	executor    *ExportExecutor
	lockManager LockManager
	workerID    string
}

func NewDistributedExportExecutor(executor *ExportExecutor, lockManager LockManager, workerID string) *DistributedExportExecutor {
	return &DistributedExportExecutor{
		executor:    executor,
		lockManager: lockManager,
		workerID:    workerID,
	}
}

// Execute runs the instance under the type lock. When the lock is held
// elsewhere it returns ErrAlreadyRunning so the caller can requeue.
func (e *DistributedExportExecutor) Execute(ctx context.Context, instance domain.ExportInstance) error {
	acquired, err := e.lockManager.TryAcquire(ctx, instance.ExportType)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		log.Printf("[%s] Export type %s is already running on another worker", e.workerID, instance.ExportType)
		return domain.ErrAlreadyRunning
	}

	log.Printf("[%s] Acquired lock for export type %s", e.workerID, instance.ExportType)

	// Release the lock even if execution panics.
	defer func() {
		if err := e.lockManager.Release(ctx, instance.ExportType); err != nil {
			log.Printf("[%s] Failed to release lock for %s: %v", e.workerID, instance.ExportType, err)
		} else {
			log.Printf("[%s] Released lock for %s", e.workerID, instance.ExportType)
		}
	}()

	return e.executor.Execute(ctx, instance)
}
