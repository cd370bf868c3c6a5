package usecases

import (
	"log"
	"sort"

	"sierra-export/internal/core/domain"
)

// Registry holds the known export types keyed by code. Chunk sizes can
// be overridden per deployment without touching the defaults.
type Registry struct {
	types map[string]domain.ExportType
}

func NewRegistry(types []domain.ExportType) *Registry {
	byCode := make(map[string]domain.ExportType, len(types))
	for _, t := range types {
		byCode[t.Code] = t
	}
	return &Registry{types: byCode}
}

func (r *Registry) Get(code string) (domain.ExportType, error) {
	t, ok := r.types[code]
	if !ok {
		return domain.ExportType{}, domain.ErrExportTypeNotFound
	}
	return t, nil
}

// All returns every type in display order.
func (r *Registry) All() []domain.ExportType {
	all := make([]domain.ExportType, 0, len(r.types))
	for _, t := range r.types {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Order < all[j].Order })
	return all
}

// ApplyChunkOverrides replaces chunk sizes for the named types.
// Unknown type codes are logged and skipped.
func (r *Registry) ApplyChunkOverrides(recOverrides, delOverrides map[string]int) {
	for code, size := range recOverrides {
		t, ok := r.types[code]
		if !ok {
			log.Printf("[DEBUG] chunk override ignores unknown export type: %s", code)
			continue
		}
		t.MaxRecChunk = size
		r.types[code] = t
	}
	for code, size := range delOverrides {
		t, ok := r.types[code]
		if !ok {
			log.Printf("[DEBUG] chunk override ignores unknown export type: %s", code)
			continue
		}
		t.MaxDelChunk = size
		r.types[code] = t
	}
}

// DefaultExportTypes lists the built-in export jobs. EResourcesToSolr
// keeps a tiny record chunk because each e-resource pulls its full
// holdings list while building the document.
func DefaultExportTypes() []domain.ExportType {
	return []domain.ExportType{
		{
			Code:        "BibsToSolr",
			Label:       "Bibs to Solr",
			Description: "Index bibliographic records in Solr.",
			Order:       10,
			MaxRecChunk: 500,
			MaxDelChunk: 1000,
			Parallel:    true,
		},
		{
			Code:        "ItemsToSolr",
			Label:       "Items to Solr",
			Description: "Index item records in Solr.",
			Order:       20,
			MaxRecChunk: 1000,
			MaxDelChunk: 1000,
			Parallel:    true,
		},
		{
			Code:        "EResourcesToSolr",
			Label:       "E-Resources to Solr",
			Description: "Index electronic resource records in Solr.",
			Order:       30,
			MaxRecChunk: 20,
			MaxDelChunk: 1000,
			Parallel:    false,
		},
		{
			Code:        "ItemsBibsToSolr",
			Label:       "Items and attached Bibs to Solr",
			Description: "Index item records plus the bib records they attach to.",
			Order:       40,
			MaxRecChunk: 500,
			MaxDelChunk: 1000,
			Parallel:    true,
		},
		{
			Code:        "BibsAndAttachedToSolr",
			Label:       "Bibs and attached Items to Solr",
			Description: "Index bib records plus the item records attached to them.",
			Order:       45,
			MaxRecChunk: 100,
			MaxDelChunk: 1000,
			Parallel:    true,
		},
		{
			Code:        "LocationsToSolr",
			Label:       "Locations to Solr",
			Description: "Index the location table in Solr.",
			Order:       50,
			MaxRecChunk: 1000,
			MaxDelChunk: 1000,
			Parallel:    false,
		},
		{
			Code:        "ItypesToSolr",
			Label:       "Item Types to Solr",
			Description: "Index the item type table in Solr.",
			Order:       60,
			MaxRecChunk: 1000,
			MaxDelChunk: 1000,
			Parallel:    false,
		},
		{
			Code:        "ItemStatusesToSolr",
			Label:       "Item Statuses to Solr",
			Description: "Index the item status table in Solr.",
			Order:       70,
			MaxRecChunk: 1000,
			MaxDelChunk: 1000,
			Parallel:    false,
		},
		{
			Code:        "AllMetadataToSolr",
			Label:       "All Metadata to Solr",
			Description: "Run every metadata export in one job.",
			Order:       80,
			MaxRecChunk: 1000,
			MaxDelChunk: 1000,
			Parallel:    false,
		},
	}
}
