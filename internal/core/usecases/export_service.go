package usecases

import (
	"errors"
	"log"
	"time"

	"sierra-export/internal/core/domain"
)

// ExportRepository persists export instances.
type ExportRepository interface {
	Save(instance domain.ExportInstance) error
	FindByID(id string) (domain.ExportInstance, error)
	FindAll(query ListQuery) ([]domain.ExportInstance, int, error)
	LatestFinished(exportType string) (domain.ExportInstance, error)
	Delete(id string) error
}

// ExportQueue hands waiting instances to a worker.
type ExportQueue interface {
	Enqueue(instance domain.ExportInstance) error
}

// TypeRegistry resolves export type codes.
type TypeRegistry interface {
	Get(code string) (domain.ExportType, error)
	All() []domain.ExportType
}

// ListQuery narrows and pages a listing of export instances.
type ListQuery struct {
	Status     string
	ExportType string
	Offset     int
	Limit      int
}

type ExportService struct {
	repo              ExportRepository
	queue             ExportQueue
	types             TypeRegistry
	automatedUsername string
}

func NewExportService(repo ExportRepository, queue ExportQueue, types TypeRegistry, automatedUsername string) *ExportService {
	return &ExportService{
		repo:              repo,
		queue:             queue,
		types:             types,
		automatedUsername: automatedUsername,
	}
}

// CreateExport validates the request, persists a waiting instance, and
// enqueues it for a worker. An empty username records the run as
// triggered by the automated account.
func (s *ExportService) CreateExport(exportType, filter string, options map[string]interface{}, username string) (domain.ExportInstance, error) {
	log.Printf("[DEBUG] CreateExport called - type: %s, filter: %s, username: %s", exportType, filter, username)

	if _, err := s.types.Get(exportType); err != nil {
		log.Printf("[DEBUG] CreateExport failed - unknown export type: %s", exportType)
		return domain.ExportInstance{}, err
	}

	if !domain.IsValidFilter(filter) {
		log.Printf("[DEBUG] CreateExport failed - invalid filter: %s", filter)
		return domain.ExportInstance{}, domain.ErrInvalidFilter
	}

	if err := domain.ValidateFilterOptions(filter, options); err != nil {
		log.Printf("[DEBUG] CreateExport failed - bad filter options: %v", err)
		return domain.ExportInstance{}, err
	}

	// A last_export run is meaningless until the type has finished at
	// least once, so reject it at creation instead of at run time.
	if filter == domain.FilterLastExport {
		if _, err := s.ResolveLastExport(exportType); err != nil {
			log.Printf("[DEBUG] CreateExport failed - no last export for %s", exportType)
			return domain.ExportInstance{}, err
		}
	}

	if username == "" {
		username = s.automatedUsername
	}

	instance := domain.NewExportInstance(exportType, filter, options, username)

	if err := s.repo.Save(instance); err != nil {
		log.Printf("[DEBUG] CreateExport failed - repository save error: %v", err)
		return domain.ExportInstance{}, err
	}

	if err := s.queue.Enqueue(instance); err != nil {
		// The instance stays in waiting; a worker sweep or a manual
		// requeue can still pick it up.
		log.Printf("[DEBUG] CreateExport - enqueue failed (instance %s still waiting): %v", instance.ID, err)
		return instance, err
	}

	log.Printf("[DEBUG] CreateExport completed - instance ID: %s", instance.ID)
	return instance, nil
}

func (s *ExportService) GetExport(id string) (domain.ExportInstance, error) {
	return s.repo.FindByID(id)
}

func (s *ExportService) ListExports(query ListQuery) ([]domain.ExportInstance, int, error) {
	if query.Status != "" && !domain.IsValidStatus(query.Status) {
		return nil, 0, domain.ErrInvalidStatus
	}
	return s.repo.FindAll(query)
}

func (s *ExportService) ListExportTypes() []domain.ExportType {
	return s.types.All()
}

func (s *ExportService) GetExportType(code string) (domain.ExportType, error) {
	return s.types.Get(code)
}

func (s *ExportService) ListExportFilters() []domain.ExportFilter {
	return domain.ExportFilters
}

// ResolveLastExport returns the timestamp of the newest finished run of
// the given type that completed without fatal errors. That timestamp is
// the low watermark for a last_export filtered run.
func (s *ExportService) ResolveLastExport(exportType string) (time.Time, error) {
	latest, err := s.repo.LatestFinished(exportType)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return time.Time{}, domain.ErrNoLastExport
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest.Timestamp, nil
}
