package storage

import (
	"errors"
	"sort"
	"sync"

	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// MemoryExportRepository is the in-memory repository used in tests and
// single-process development setups.
type MemoryExportRepository struct {
	mu        sync.RWMutex
	instances map[string]domain.ExportInstance
}

func NewMemoryExportRepository() *MemoryExportRepository {
	return &MemoryExportRepository{instances: make(map[string]domain.ExportInstance)}
}

func (r *MemoryExportRepository) Save(instance domain.ExportInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.ID] = instance
	return nil
}

func (r *MemoryExportRepository) FindByID(id string) (domain.ExportInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]
	if !ok {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, nil
}

func (r *MemoryExportRepository) FindAll(query usecases.ListQuery) ([]domain.ExportInstance, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.ExportInstance
	for _, instance := range r.instances {
		if query.Status != "" && string(instance.Status) != query.Status {
			continue
		}
		if query.ExportType != "" && instance.ExportType != query.ExportType {
			continue
		}
		matched = append(matched, instance)
	}

	// Newest first, matching the SQL repositories.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	matched = pageSlice(matched, query.Offset, query.Limit)
	return matched, total, nil
}

func (r *MemoryExportRepository) LatestFinished(exportType string) (domain.ExportInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest domain.ExportInstance
	found := false
	for _, instance := range r.instances {
		if instance.ExportType != exportType {
			continue
		}
		if instance.Status != domain.StatusSuccess && instance.Status != domain.StatusDoneWithErrors {
			continue
		}
		if !found || instance.Timestamp.After(latest.Timestamp) {
			latest = instance
			found = true
		}
	}
	if !found {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return latest, nil
}

func (r *MemoryExportRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[id]; !ok {
		return domain.ErrInstanceNotFound
	}
	delete(r.instances, id)
	return nil
}

func pageSlice(instances []domain.ExportInstance, offset, limit int) []domain.ExportInstance {
	if offset >= len(instances) {
		return nil
	}
	instances = instances[offset:]
	if limit > 0 && limit < len(instances) {
		instances = instances[:limit]
	}
	return instances
}

// MemoryQueue is a channel-backed queue for single-process setups.
type MemoryQueue struct {
	ch chan domain.ExportInstance
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan domain.ExportInstance, size)}
}

func (q *MemoryQueue) Enqueue(instance domain.ExportInstance) error {
	select {
	case q.ch <- instance:
		return nil
	default:
		return errors.New("export queue is full")
	}
}

// Chan exposes the receive side for the worker loop.
func (q *MemoryQueue) Chan() <-chan domain.ExportInstance {
	return q.ch
}
