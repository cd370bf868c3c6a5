package scheduler

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"sierra-export/internal/config"
	"sierra-export/internal/core/usecases"
)

// CronScheduler fires the configured automated exports. Each schedule
// entry creates a fresh export instance owned by the automated account;
// the instance then flows through the normal queue like a manual run.
type CronScheduler struct {
	service   *usecases.ExportService
	schedules []config.ScheduleEntry
	cron      *cron.Cron

	mu      sync.Mutex
	entries []cron.EntryID
}

func NewCronScheduler(service *usecases.ExportService, schedules []config.ScheduleEntry) *CronScheduler {
	return &CronScheduler{
		service:   service,
		schedules: schedules,
		cron:      cron.New(), // Standard 5-field format (minute hour dom month dow)
	}
}

// Start registers every schedule and runs until the context is
// cancelled.
func (s *CronScheduler) Start(ctx context.Context) {
	log.Printf("Starting cron scheduler with %d schedules", len(s.schedules))

	for _, entry := range s.schedules {
		if err := s.addSchedule(entry); err != nil {
			log.Printf("Skipping schedule %s/%s: %v", entry.ExportType, entry.Filter, err)
		}
	}

	s.cron.Start()
	<-ctx.Done()
	log.Println("Scheduler context cancelled, stopping")
}

func (s *CronScheduler) Stop() {
	log.Println("Stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Cron scheduler stopped")
}

func (s *CronScheduler) addSchedule(entry config.ScheduleEntry) error {
	exportType := entry.ExportType
	filter := entry.Filter

	entryID, err := s.cron.AddFunc(entry.CronSpec, func() {
		log.Printf("Triggering scheduled export: %s (%s)", exportType, filter)

		// Blank username makes the service record the automated account.
		if _, err := s.service.CreateExport(exportType, filter, nil, ""); err != nil {
			log.Printf("Scheduled export %s failed to start: %v", exportType, err)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = append(s.entries, entryID)
	s.mu.Unlock()

	log.Printf("Scheduled export %s (%s) with cron expression: %s", exportType, filter, entry.CronSpec)
	return nil
}
