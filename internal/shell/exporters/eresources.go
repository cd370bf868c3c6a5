package exporters

import (
	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
)

// NewEResourcesToSolr exports electronic resource records. These run
// serially with a small chunk size: building each document pulls the
// full holdings list for the resource.
func NewEResourcesToSolr(exportType domain.ExportType, filter sierra.Filter, deps Deps) Exporter {
	return newToSolrExporter(exportType, "e", filter,
		[]string{IndexHaystack}, buildEResourceDoc, deps)
}

func buildEResourceDoc(record sierra.Record) (solr.Document, error) {
	return solr.Document{
		"id":            record.RecordNumber(),
		"type":          "eresource",
		"record_number": record.RecordNumber(),
		"last_updated":  record.LastUpdated,
	}, nil
}
