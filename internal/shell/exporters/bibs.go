package exporters

import (
	"context"
	"fmt"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
)

// NewBibsToSolr exports bibliographic records into the discovery cores
// and the raw MARC core.
func NewBibsToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	return newToSolrExporter(exportType, "b", filter,
		[]string{IndexBibdata, IndexHaystack, IndexMarc}, buildBibDoc, deps)
}

// NewBibsAndAttachedToSolr exports bib records plus the item records
// attached to them, the inverse of ItemsBibsToSolr. Item documents on
// touched bibs stay current without a separate item run.
func NewBibsAndAttachedToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	e := newToSolrExporter(exportType, "b", filter,
		[]string{IndexBibdata, IndexHaystack, IndexMarc}, buildBibDoc, deps)

	e.chunkHook = func(ctx context.Context, records []sierra.Record, vals *Vals) error {
		bibIDs := make([]int64, 0, len(records))
		for _, record := range records {
			bibIDs = append(bibIDs, record.ID)
		}

		items, err := deps.Sierra.FetchAttachedItems(ctx, bibIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch attached items: %w", err)
		}

		docs := make([]solr.Document, 0, len(items))
		reindexed := make([]interface{}, 0, len(items))
		for _, item := range items {
			doc, err := buildItemDoc(item)
			if err != nil {
				deps.Log.Warning("skipping attached item %s: %v", item.RecordNumber(), err)
				continue
			}
			docs = append(docs, doc)
			reindexed = append(reindexed, item.RecordNumber())
		}

		// Item documents only live in haystack.
		if err := deps.Index(IndexHaystack).Add(ctx, docs); err != nil {
			return fmt.Errorf("failed to reindex attached items: %w", err)
		}

		vals.Set(exportType.Code, "reindexed_items", reindexed)
		return nil
	}
	return e
}

func buildBibDoc(record sierra.Record) (solr.Document, error) {
	return solr.Document{
		"id":            record.RecordNumber(),
		"type":          "bib",
		"record_number": record.RecordNumber(),
		"last_updated":  record.LastUpdated,
	}, nil
}
