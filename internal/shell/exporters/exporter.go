package exporters

import (
	"context"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// Named indexes an exporter may write to. Bib and item documents go to
// both discovery cores; MARC exports only feed the marc core.
const (
	IndexBibdata  = "bibdata"
	IndexHaystack = "haystack"
	IndexMarc     = "marc"
)

// RecordSource is the slice of the Sierra client exporters read from.
type RecordSource interface {
	CountRecords(ctx context.Context, recordType string, filter sierra.Filter) (int, error)
	FetchRecords(ctx context.Context, recordType string, filter sierra.Filter, offset, limit int) ([]sierra.Record, error)
	FetchAttachedBibs(ctx context.Context, itemIDs []int64) ([]sierra.Record, error)
	FetchAttachedItems(ctx context.Context, bibIDs []int64) ([]sierra.Record, error)
	FetchLocations(ctx context.Context) ([]sierra.CodeName, error)
	FetchItypes(ctx context.Context) ([]sierra.CodeName, error)
	FetchItemStatuses(ctx context.Context) ([]sierra.CodeName, error)
}

// SolrIndex is the slice of the Solr client exporters write to.
type SolrIndex interface {
	Add(ctx context.Context, docs []solr.Document) error
	DeleteByID(ctx context.Context, ids []string) error
	DeleteByQuery(ctx context.Context, query string) error
	Commit(ctx context.Context) error
	Optimize(ctx context.Context) error
}

// Exporter runs one export type. The executor drives it: Counts plans
// the chunks, ExportChunk and DeleteChunk process one window each, and
// FinalCallback runs once after every chunk has finished.
type Exporter interface {
	Type() domain.ExportType

	// Counts returns how many live records and how many deletions the
	// run covers.
	Counts(ctx context.Context) (records, deletions int, err error)

	ExportChunk(ctx context.Context, chunk usecases.Chunk, vals *Vals) error
	DeleteChunk(ctx context.Context, chunk usecases.Chunk, vals *Vals) error

	FinalCallback(ctx context.Context, vals *Vals) error
}

// Deps bundles what every exporter needs.
type Deps struct {
	Sierra  RecordSource
	Indexes map[string]SolrIndex
	Log     *JobLog
}

// Index returns the named index or nil when it is not wired.
func (d Deps) Index(name string) SolrIndex {
	return d.Indexes[name]
}

// Factory builds an exporter for one instance. Filter carries the
// instance's filter with the last-export watermark already resolved.
type Factory func(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter
