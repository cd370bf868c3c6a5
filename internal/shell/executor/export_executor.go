package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
	"sierra-export/internal/shell/exporters"
)

// ExportExecutor runs one export instance end to end: plan the chunks,
// fan them out, finalize the indexes, persist the terminal status, and
// notify.
type ExportExecutor struct {
	repo       usecases.ExportRepository
	types      usecases.TypeRegistry
	sierra     exporters.RecordSource
	indexes    map[string]exporters.SolrIndex
	notifiers  []Notifier
	logDir     string
	adminRoot  string
	maxWorkers int
}

func NewExportExecutor(repo usecases.ExportRepository, types usecases.TypeRegistry,
	source exporters.RecordSource, indexes map[string]exporters.SolrIndex,
	notifiers []Notifier, logDir, adminRoot string, maxWorkers int) *ExportExecutor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ExportExecutor{
		repo:       repo,
		types:      types,
		sierra:     source,
		indexes:    indexes,
		notifiers:  notifiers,
		logDir:     logDir,
		adminRoot:  adminRoot,
		maxWorkers: maxWorkers,
	}
}

// Execute runs the instance. The returned error reports infrastructure
// failures; per-record problems are logged against the instance and
// reflected in its final status instead.
func (e *ExportExecutor) Execute(ctx context.Context, instance domain.ExportInstance) error {
	started := time.Now()
	ExportsCurrentlyRunning.Inc()
	defer ExportsCurrentlyRunning.Dec()
	defer func() {
		ExportDuration.WithLabelValues(instance.ExportType).Observe(time.Since(started).Seconds())
	}()

	exportType, err := e.types.Get(instance.ExportType)
	if err != nil {
		e.finish(ctx, instance.WithStatus(domain.StatusErrors), exportType, "")
		return err
	}

	instance = instance.WithStatus(domain.StatusInProgress)
	if err := e.repo.Save(instance); err != nil {
		return fmt.Errorf("failed to mark instance in progress: %w", err)
	}
	log.Printf("[EXPORT] %s started - type: %s, filter: %s", instance.ID, instance.ExportType, instance.Filter)

	jobLog, err := exporters.NewJobLog(e.logDir, instance.ID)
	if err != nil {
		e.finish(ctx, instance.WithStatus(domain.StatusErrors), exportType, "")
		return err
	}
	defer jobLog.Close()

	fatal := e.run(ctx, instance, exportType, jobLog)

	errCount, warnCount := jobLog.Counts()
	instance = instance.WithCounts(errCount, warnCount)
	if fatal != nil {
		jobLog.Error("export aborted: %v", fatal)
		errCount, warnCount = jobLog.Counts()
		instance = instance.WithCounts(errCount, warnCount).WithStatus(domain.StatusErrors)
	} else {
		instance = instance.WithStatus(instance.FinalStatus())
	}

	e.finish(ctx, instance, exportType, jobLog.Path())
	return fatal
}

// run does the chunked work and recovers panics into a fatal error.
func (e *ExportExecutor) run(ctx context.Context, instance domain.ExportInstance,
	exportType domain.ExportType, jobLog *exporters.JobLog) (fatal error) {

	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("export panicked: %v", r)
		}
	}()

	filter, err := e.buildFilter(instance)
	if err != nil {
		return err
	}

	deps := exporters.Deps{Sierra: e.sierra, Indexes: e.indexes, Log: jobLog}
	exporter, err := exporters.Build(exportType, filter, deps)
	if err != nil {
		return err
	}

	records, deletions, err := exporter.Counts(ctx)
	if err != nil {
		return err
	}
	jobLog.Info("run covers %d records and %d deletions", records, deletions)

	vals := exporters.NewVals()

	recPlan := usecases.PlanChunks(records, exportType.MaxRecChunk, exportType.Parallel)
	e.runChunks(ctx, recPlan, vals, jobLog, "export", exporter.ExportChunk)

	delPlan := usecases.PlanChunks(deletions, exportType.MaxDelChunk, exportType.Parallel)
	e.runChunks(ctx, delPlan, vals, jobLog, "delete", exporter.DeleteChunk)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := exporter.FinalCallback(ctx, vals); err != nil {
		return fmt.Errorf("final callback failed: %w", err)
	}
	return nil
}

type chunkFunc func(ctx context.Context, chunk usecases.Chunk, vals *exporters.Vals) error

// runChunks executes a plan. Chunk failures are logged against the run
// and do not stop the remaining chunks; a failed chunk's records are
// simply missing from the target index until the next run.
func (e *ExportExecutor) runChunks(ctx context.Context, plan usecases.ChunkPlan,
	vals *exporters.Vals, jobLog *exporters.JobLog, stage string, fn chunkFunc) {

	if len(plan.Chunks) == 0 {
		return
	}

	if !plan.Parallel {
		for _, chunk := range plan.Chunks {
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, chunk, vals); err != nil {
				jobLog.Error("%s chunk %d failed: %v", stage, chunk.Index, err)
			}
		}
		return
	}

	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup
	for _, chunk := range plan.Chunks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(chunk usecases.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(ctx, chunk, vals); err != nil {
				jobLog.Error("%s chunk %d failed: %v", stage, chunk.Index, err)
			}
		}(chunk)
	}
	wg.Wait()
}

func (e *ExportExecutor) buildFilter(instance domain.ExportInstance) (sierra.Filter, error) {
	filter := sierra.Filter{Code: instance.Filter, Options: instance.Options}

	if instance.Filter == domain.FilterLastExport {
		latest, err := e.repo.LatestFinished(instance.ExportType)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return sierra.Filter{}, domain.ErrNoLastExport
		}
		if err != nil {
			return sierra.Filter{}, err
		}
		filter.Latest = latest.Timestamp
	}
	return filter, nil
}

// finish persists the terminal status and fans the notification out to
// every configured channel. Notification failures are logged, never
// fatal.
func (e *ExportExecutor) finish(ctx context.Context, instance domain.ExportInstance,
	exportType domain.ExportType, logFile string) {

	if err := e.repo.Save(instance); err != nil {
		log.Printf("[EXPORT] %s failed to persist final status: %v", instance.ID, err)
	}
	ExportsTotal.WithLabelValues(instance.ExportType, string(instance.Status)).Inc()
	log.Printf("[EXPORT] %s finished - status: %s, errors: %d, warnings: %d",
		instance.ID, instance.Status, instance.Errors, instance.Warnings)

	notification := Notification{
		InstanceID:    instance.ID,
		AdminURL:      e.adminRoot + "exportinstance/" + instance.ID,
		Status:        instance.Status,
		Errors:        instance.Errors,
		Warnings:      instance.Warnings,
		LogFile:       logFile,
		Timestamp:     instance.Timestamp,
		TypeCode:      instance.ExportType,
		TypeLabel:     exportType.Label,
		FilterCode:    instance.Filter,
		FilterLabel:   domain.FilterLabel(instance.Filter),
		FilterOptions: instance.Options,
		Username:      instance.Username,
	}
	for _, notifier := range e.notifiers {
		if err := notifier.ExportComplete(ctx, notification); err != nil {
			log.Printf("[EXPORT] %s notification failed: %v", instance.ID, err)
		}
	}
}
