package exporters

import (
	"context"
	"fmt"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// DocBuilder turns one Sierra record into a Solr document. Returning
// an error skips the record; the run keeps going.
type DocBuilder func(record sierra.Record) (solr.Document, error)

// ToSolrExporter is the shared machinery for record-driven exports:
// fetch a window of Sierra records, build documents, push them to the
// named indexes, and mirror deletions.
type ToSolrExporter struct {
	exportType domain.ExportType
	recordType string
	filter     sierra.Filter
	indexNames []string
	buildDoc   DocBuilder
	deps       Deps

	// chunkHook runs after each exported chunk with the records it
	// covered; compound exporters use it to pull in related records.
	chunkHook func(ctx context.Context, records []sierra.Record, vals *Vals) error

	// commitNames extends the set of indexes committed at the end when
	// a chunk hook writes outside indexNames. Empty means indexNames.
	commitNames []string
}

func newToSolrExporter(exportType domain.ExportType, recordType string, filter sierra.Filter,
	indexNames []string, buildDoc DocBuilder, deps Deps) *ToSolrExporter {
	return &ToSolrExporter{
		exportType: exportType,
		recordType: recordType,
		filter:     filter,
		indexNames: indexNames,
		buildDoc:   buildDoc,
		deps:       deps,
	}
}

func (e *ToSolrExporter) Type() domain.ExportType {
	return e.exportType
}

func (e *ToSolrExporter) Counts(ctx context.Context) (int, int, error) {
	records, err := e.deps.Sierra.CountRecords(ctx, e.recordType, e.recordFilter())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	deletions, err := e.deps.Sierra.CountRecords(ctx, e.recordType, e.deletionFilter())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count deletions: %w", err)
	}
	return records, deletions, nil
}

func (e *ToSolrExporter) ExportChunk(ctx context.Context, chunk usecases.Chunk, vals *Vals) error {
	records, err := e.deps.Sierra.FetchRecords(ctx, e.recordType, e.recordFilter(), chunk.Offset, chunk.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch chunk %d: %w", chunk.Index, err)
	}

	docs := make([]solr.Document, 0, len(records))
	for _, record := range records {
		doc, err := e.buildDoc(record)
		if err != nil {
			e.deps.Log.Warning("skipping record %s: %v", record.RecordNumber(), err)
			continue
		}
		docs = append(docs, doc)
	}

	for _, name := range e.indexNames {
		if err := e.deps.Index(name).Add(ctx, docs); err != nil {
			return fmt.Errorf("failed to index chunk %d in %s: %w", chunk.Index, name, err)
		}
	}

	exported := make([]interface{}, 0, len(records))
	for _, record := range records {
		exported = append(exported, record.RecordNumber())
	}
	vals.Set(e.exportType.Code, "exported_ids", exported)

	if e.chunkHook != nil {
		return e.chunkHook(ctx, records, vals)
	}
	return nil
}

func (e *ToSolrExporter) DeleteChunk(ctx context.Context, chunk usecases.Chunk, vals *Vals) error {
	records, err := e.deps.Sierra.FetchRecords(ctx, e.recordType, e.deletionFilter(), chunk.Offset, chunk.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch deletion chunk %d: %w", chunk.Index, err)
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.RecordNumber())
	}

	for _, name := range e.indexNames {
		if err := e.deps.Index(name).DeleteByID(ctx, ids); err != nil {
			return fmt.Errorf("failed to delete chunk %d from %s: %w", chunk.Index, name, err)
		}
	}
	return nil
}

// FinalCallback commits every touched index. Full exports also
// optimize, since they churn most of the segment files.
func (e *ToSolrExporter) FinalCallback(ctx context.Context, vals *Vals) error {
	for _, index := range e.uniqueIndexes() {
		if err := index.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		if e.filter.Code == domain.FilterFullExport {
			if err := index.Optimize(ctx); err != nil {
				return fmt.Errorf("failed to optimize: %w", err)
			}
		}
	}
	return nil
}

func (e *ToSolrExporter) recordFilter() sierra.Filter {
	f := e.filter
	f.Deletions = false
	return f
}

func (e *ToSolrExporter) deletionFilter() sierra.Filter {
	f := e.filter
	f.Deletions = true
	return f
}

// uniqueIndexes deduplicates index clients so cores shared between
// names get committed and optimized once.
func (e *ToSolrExporter) uniqueIndexes() []SolrIndex {
	names := e.commitNames
	if len(names) == 0 {
		names = e.indexNames
	}
	var unique []SolrIndex
	for _, name := range names {
		index := e.deps.Index(name)
		seen := false
		for _, u := range unique {
			if u == index {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, index)
		}
	}
	return unique
}
