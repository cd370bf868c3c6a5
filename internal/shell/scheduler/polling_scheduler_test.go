package scheduler

import (
	"context"
	"testing"
	"time"

	"sierra-export/internal/core/domain"
	"sierra-export/internal/shell/storage"
)

type fakeQueue struct {
	pending   []domain.ExportInstance
	deferred  []domain.ExportInstance
	promotes  int
	exhausted chan struct{}
}

func (q *fakeQueue) Dequeue(_ context.Context, _ time.Duration) (*domain.ExportInstance, error) {
	if len(q.pending) == 0 {
		if q.exhausted != nil {
			close(q.exhausted)
			q.exhausted = nil
		}
		return nil, nil
	}
	instance := q.pending[0]
	q.pending = q.pending[1:]
	return &instance, nil
}

func (q *fakeQueue) Schedule(instance domain.ExportInstance, _ time.Time) error {
	q.deferred = append(q.deferred, instance)
	return nil
}

func (q *fakeQueue) PromoteDue(_ time.Time) (int, error) {
	q.promotes++
	return 0, nil
}

type fakeExecutor struct {
	executed []string
	err      error
}

func (e *fakeExecutor) Execute(_ context.Context, instance domain.ExportInstance) error {
	e.executed = append(e.executed, instance.ID)
	return e.err
}

func runScheduler(t *testing.T, queue *fakeQueue, repo *storage.MemoryExportRepository, exec *fakeExecutor) {
	t.Helper()

	queue.exhausted = make(chan struct{})
	exhausted := queue.exhausted

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewPollingScheduler(repo, queue, exec, time.Millisecond, "worker-test").Start(ctx)
	}()

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not drain the queue")
	}
	cancel()
	<-done
}

func TestPollingSchedulerExecutesWaitingInstances(t *testing.T) {
	repo := storage.NewMemoryExportRepository()
	instance := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "jdoe")
	repo.Save(instance)

	queue := &fakeQueue{pending: []domain.ExportInstance{instance}}
	exec := &fakeExecutor{}
	runScheduler(t, queue, repo, exec)

	if len(exec.executed) != 1 || exec.executed[0] != instance.ID {
		t.Errorf("executed = %v", exec.executed)
	}
	if queue.promotes == 0 {
		t.Error("expected deferred exports to be promoted")
	}
}

func TestPollingSchedulerSkipsFinishedInstances(t *testing.T) {
	repo := storage.NewMemoryExportRepository()
	instance := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "jdoe")
	repo.Save(instance.WithStatus(domain.StatusSuccess))

	queue := &fakeQueue{pending: []domain.ExportInstance{instance}}
	exec := &fakeExecutor{}
	runScheduler(t, queue, repo, exec)

	if len(exec.executed) != 0 {
		t.Errorf("finished instance should not run again: %v", exec.executed)
	}
}

func TestPollingSchedulerDefersBusyTypes(t *testing.T) {
	repo := storage.NewMemoryExportRepository()
	instance := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "jdoe")
	repo.Save(instance)

	queue := &fakeQueue{pending: []domain.ExportInstance{instance}}
	exec := &fakeExecutor{err: domain.ErrAlreadyRunning}
	runScheduler(t, queue, repo, exec)

	if len(queue.deferred) != 1 {
		t.Errorf("busy type should be deferred, got %v", queue.deferred)
	}
}
