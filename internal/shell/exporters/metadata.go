package exporters

import (
	"context"
	"fmt"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// metadataKind identifies one of the small Sierra code tables.
type metadataKind struct {
	docType string
	fetch   func(RecordSource) func(context.Context) ([]sierra.CodeName, error)
}

var (
	kindLocations = metadataKind{
		docType: "location",
		fetch:   func(s RecordSource) func(context.Context) ([]sierra.CodeName, error) { return s.FetchLocations },
	}
	kindItypes = metadataKind{
		docType: "itype",
		fetch:   func(s RecordSource) func(context.Context) ([]sierra.CodeName, error) { return s.FetchItypes },
	}
	kindItemStatuses = metadataKind{
		docType: "item_status",
		fetch: func(s RecordSource) func(context.Context) ([]sierra.CodeName, error) {
			return s.FetchItemStatuses
		},
	}
)

// metadataExporter fully replaces one code table in the haystack core:
// clear every document of the type, then load the current table. The
// tables are tiny, so each run is a single chunk.
type metadataExporter struct {
	exportType domain.ExportType
	kind       metadataKind
	deps       Deps
}

func NewLocationsToSolr(exportType domain.ExportType, _ sierra.Filter, deps Deps) Exporter {
	return &metadataExporter{exportType: exportType, kind: kindLocations, deps: deps}
}

func NewItypesToSolr(exportType domain.ExportType, _ sierra.Filter, deps Deps) Exporter {
	return &metadataExporter{exportType: exportType, kind: kindItypes, deps: deps}
}

func NewItemStatusesToSolr(exportType domain.ExportType, _ sierra.Filter, deps Deps) Exporter {
	return &metadataExporter{exportType: exportType, kind: kindItemStatuses, deps: deps}
}

func (e *metadataExporter) Type() domain.ExportType {
	return e.exportType
}

func (e *metadataExporter) Counts(ctx context.Context) (int, int, error) {
	return 1, 0, nil
}

func (e *metadataExporter) ExportChunk(ctx context.Context, _ usecases.Chunk, vals *Vals) error {
	rows, err := e.kind.fetch(e.deps.Sierra)(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch %s table: %w", e.kind.docType, err)
	}

	docs := make([]solr.Document, 0, len(rows))
	for _, row := range rows {
		if row.Code == "" {
			e.deps.Log.Warning("skipping %s row with empty code", e.kind.docType)
			continue
		}
		docs = append(docs, solr.Document{
			"id":    fmt.Sprintf("%s:%s", e.kind.docType, row.Code),
			"type":  e.kind.docType,
			"code":  row.Code,
			"label": row.Name,
		})
	}

	index := e.deps.Index(IndexHaystack)
	if err := index.DeleteByQuery(ctx, "type:"+e.kind.docType); err != nil {
		return fmt.Errorf("failed to clear %s documents: %w", e.kind.docType, err)
	}
	if err := index.Add(ctx, docs); err != nil {
		return fmt.Errorf("failed to index %s table: %w", e.kind.docType, err)
	}

	vals.Set(e.exportType.Code, "row_count", len(docs))
	return nil
}

func (e *metadataExporter) DeleteChunk(ctx context.Context, _ usecases.Chunk, _ *Vals) error {
	// Stale rows are removed by the clear in ExportChunk.
	return nil
}

func (e *metadataExporter) FinalCallback(ctx context.Context, _ *Vals) error {
	return e.deps.Index(IndexHaystack).Commit(ctx)
}

// allMetadataExporter runs every code table export as one job.
type allMetadataExporter struct {
	exportType domain.ExportType
	parts      []Exporter
}

func NewAllMetadataToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	return &allMetadataExporter{
		exportType: exportType,
		parts: []Exporter{
			NewLocationsToSolr(exportType, filter, deps),
			NewItypesToSolr(exportType, filter, deps),
			NewItemStatusesToSolr(exportType, filter, deps),
		},
	}
}

func (e *allMetadataExporter) Type() domain.ExportType {
	return e.exportType
}

func (e *allMetadataExporter) Counts(ctx context.Context) (int, int, error) {
	return 1, 0, nil
}

func (e *allMetadataExporter) ExportChunk(ctx context.Context, chunk usecases.Chunk, vals *Vals) error {
	for _, part := range e.parts {
		if err := part.ExportChunk(ctx, chunk, vals); err != nil {
			return err
		}
	}
	return nil
}

func (e *allMetadataExporter) DeleteChunk(ctx context.Context, _ usecases.Chunk, _ *Vals) error {
	return nil
}

func (e *allMetadataExporter) FinalCallback(ctx context.Context, vals *Vals) error {
	// The parts share one core; a single commit covers them all.
	return e.parts[0].FinalCallback(ctx, vals)
}
