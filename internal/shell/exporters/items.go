package exporters

import (
	"context"
	"fmt"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
)

// NewItemsToSolr exports item records into the haystack core.
func NewItemsToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	return newToSolrExporter(exportType, "i", filter,
		[]string{IndexHaystack}, buildItemDoc, deps)
}

// NewItemsBibsToSolr exports item records plus the bib records they
// attach to. Touched parents get reindexed in the same run so holdings
// shown on bib documents stay current.
func NewItemsBibsToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	e := newToSolrExporter(exportType, "i", filter,
		[]string{IndexHaystack}, buildItemDoc, deps)
	e.commitNames = []string{IndexBibdata, IndexHaystack, IndexMarc}

	e.chunkHook = func(ctx context.Context, records []sierra.Record, vals *Vals) error {
		itemIDs := make([]int64, 0, len(records))
		for _, record := range records {
			itemIDs = append(itemIDs, record.ID)
		}

		bibs, err := deps.Sierra.FetchAttachedBibs(ctx, itemIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch attached bibs: %w", err)
		}

		docs := make([]solr.Document, 0, len(bibs))
		reindexed := make([]interface{}, 0, len(bibs))
		for _, bib := range bibs {
			doc, err := buildBibDoc(bib)
			if err != nil {
				deps.Log.Warning("skipping attached bib %s: %v", bib.RecordNumber(), err)
				continue
			}
			docs = append(docs, doc)
			reindexed = append(reindexed, bib.RecordNumber())
		}

		for _, name := range []string{IndexBibdata, IndexHaystack, IndexMarc} {
			if err := deps.Index(name).Add(ctx, docs); err != nil {
				return fmt.Errorf("failed to reindex attached bibs in %s: %w", name, err)
			}
		}

		vals.Set(exportType.Code, "reindexed_bibs", reindexed)
		return nil
	}
	return e
}

func buildItemDoc(record sierra.Record) (solr.Document, error) {
	return solr.Document{
		"id":            record.RecordNumber(),
		"type":          "item",
		"record_number": record.RecordNumber(),
		"location_code": record.LocationCode,
		"last_updated":  record.LastUpdated,
	}, nil
}
