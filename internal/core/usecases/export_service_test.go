package usecases

import (
	"errors"
	"testing"
	"time"

	"sierra-export/internal/core/domain"
)

type fakeRepo struct {
	instances map[string]domain.ExportInstance
	saveErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{instances: make(map[string]domain.ExportInstance)}
}

func (r *fakeRepo) Save(instance domain.ExportInstance) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.instances[instance.ID] = instance
	return nil
}

func (r *fakeRepo) FindByID(id string) (domain.ExportInstance, error) {
	instance, ok := r.instances[id]
	if !ok {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, nil
}

func (r *fakeRepo) FindAll(query ListQuery) ([]domain.ExportInstance, int, error) {
	var all []domain.ExportInstance
	for _, instance := range r.instances {
		if query.Status != "" && string(instance.Status) != query.Status {
			continue
		}
		if query.ExportType != "" && instance.ExportType != query.ExportType {
			continue
		}
		all = append(all, instance)
	}
	return all, len(all), nil
}

func (r *fakeRepo) LatestFinished(exportType string) (domain.ExportInstance, error) {
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

func (r *fakeRepo) Delete(id string) error {
	delete(r.instances, id)
	return nil
}

type fakeQueue struct {
	enqueued []domain.ExportInstance
	err      error
}

func (q *fakeQueue) Enqueue(instance domain.ExportInstance) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, instance)
	return nil
}

func newService(repo *fakeRepo, queue *fakeQueue) *ExportService {
	return NewExportService(repo, queue, NewRegistry(DefaultExportTypes()), "django_admin")
}

func TestCreateExport(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	service := newService(repo, queue)

	instance, err := service.CreateExport("BibsToSolr", domain.FilterFullExport, nil, "jdoe")
	if err != nil {
		t.Fatalf("CreateExport failed: %v", err)
	}

	if instance.Status != domain.StatusWaiting {
		t.Errorf("expected waiting status, got %s", instance.Status)
	}
	if instance.Username != "jdoe" {
		t.Errorf("expected username jdoe, got %s", instance.Username)
	}
	if _, err := repo.FindByID(instance.ID); err != nil {
		t.Errorf("instance not persisted: %v", err)
	}
	if len(queue.enqueued) != 1 {
		t.Errorf("expected 1 enqueued instance, got %d", len(queue.enqueued))
	}
}

func TestCreateExportBlankUsernameUsesAutomatedAccount(t *testing.T) {
	service := newService(newFakeRepo(), &fakeQueue{})

	instance, err := service.CreateExport("ItemsToSolr", domain.FilterFullExport, nil, "")
	if err != nil {
		t.Fatalf("CreateExport failed: %v", err)
	}
	if instance.Username != "django_admin" {
		t.Errorf("expected automated username, got %s", instance.Username)
	}
}

func TestCreateExportValidation(t *testing.T) {
	tests := []struct {
		name       string
		exportType string
		filter     string
		options    map[string]interface{}
		wantErr    error
	}{
		{
			name:       "unknown type",
			exportType: "CardCatalogToMicrofiche",
			filter:     domain.FilterFullExport,
			wantErr:    domain.ErrExportTypeNotFound,
		},
		{
			name:       "unknown filter",
			exportType: "BibsToSolr",
			filter:     "by_vibes",
			wantErr:    domain.ErrInvalidFilter,
		},
		{
			name:       "date range missing options",
			exportType: "BibsToSolr",
			filter:     domain.FilterDateRange,
			options:    map[string]interface{}{"date_range_from": "2024-01-01"},
			wantErr:    domain.ErrInvalidOptions,
		},
		{
			name:       "last export never run",
			exportType: "BibsToSolr",
			filter:     domain.FilterLastExport,
			wantErr:    domain.ErrNoLastExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newService(newFakeRepo(), &fakeQueue{})
			_, err := service.CreateExport(tt.exportType, tt.filter, tt.options, "jdoe")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateExport error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateExportEnqueueFailureKeepsInstance(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{err: errors.New("redis down")}
	service := newService(repo, queue)

	instance, err := service.CreateExport("BibsToSolr", domain.FilterFullExport, nil, "jdoe")
	if err == nil {
		t.Fatal("expected enqueue error to surface")
	}
	if _, findErr := repo.FindByID(instance.ID); findErr != nil {
		t.Error("instance should remain persisted after enqueue failure")
	}
}

func TestResolveLastExport(t *testing.T) {
	repo := newFakeRepo()
	service := newService(repo, &fakeQueue{})

	older := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "u")
	older.Timestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older.Status = domain.StatusSuccess
	repo.Save(older)

	newer := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "u")
	newer.Timestamp = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	newer.Status = domain.StatusDoneWithErrors
	repo.Save(newer)

	failed := domain.NewExportInstance("BibsToSolr", domain.FilterFullExport, nil, "u")
	failed.Timestamp = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	failed.Status = domain.StatusErrors
	repo.Save(failed)

	watermark, err := service.ResolveLastExport("BibsToSolr")
	if err != nil {
		t.Fatalf("ResolveLastExport failed: %v", err)
	}

	// done_with_errors still counts as a completed export; errors does not.
	if !watermark.Equal(newer.Timestamp) {
		t.Errorf("watermark = %v, want %v", watermark, newer.Timestamp)
	}
}

func TestListExportsRejectsBadStatus(t *testing.T) {
	service := newService(newFakeRepo(), &fakeQueue{})

	if _, _, err := service.ListExports(ListQuery{Status: "deferred"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestRegistryChunkOverrides(t *testing.T) {
	registry := NewRegistry(DefaultExportTypes())
	registry.ApplyChunkOverrides(
		map[string]int{"BibsToSolr": 200, "Nope": 5},
		map[string]int{"BibsToSolr": 400},
	)

	bibs, err := registry.Get("BibsToSolr")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bibs.MaxRecChunk != 200 || bibs.MaxDelChunk != 400 {
		t.Errorf("overrides not applied: rec=%d del=%d", bibs.MaxRecChunk, bibs.MaxDelChunk)
	}
}

func TestRegistryAllSortedByOrder(t *testing.T) {
	registry := NewRegistry(DefaultExportTypes())

	all := registry.All()
	if len(all) == 0 {
		t.Fatal("expected registered types")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Order > all[i].Order {
			t.Errorf("types out of order at %d: %s before %s", i, all[i-1].Code, all[i].Code)
		}
	}
	if all[0].Code != "BibsToSolr" {
		t.Errorf("expected BibsToSolr first, got %s", all[0].Code)
	}
}
