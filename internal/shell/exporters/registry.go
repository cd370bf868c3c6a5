package exporters

import (
	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/core/domain"
)

var factories = map[string]Factory{
	"BibsToSolr":            NewBibsToSolr,
	"ItemsToSolr":           NewItemsToSolr,
	"EResourcesToSolr":      NewEResourcesToSolr,
	"ItemsBibsToSolr":       NewItemsBibsToSolr,
	"BibsAndAttachedToSolr": NewBibsAndAttachedToSolr,
	"LocationsToSolr":       NewLocationsToSolr,
	"ItypesToSolr":          NewItypesToSolr,
	"ItemStatusesToSolr":    NewItemStatusesToSolr,
	"AllMetadataToSolr":     NewAllMetadataToSolr,
}

// Build returns the exporter for the given type, or
// ErrExportTypeNotFound when no implementation is registered.
func Build(exportType domain.ExportType, filter sierra.Filter, deps Deps) (Exporter, error) {
	factory, ok := factories[exportType.Code]
	if !ok {
		return nil, domain.ErrExportTypeNotFound
	}
	return factory(exportType, filter, deps), nil
}
