package exporters

import (
	"context"
	"testing"
	"time"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

type fakeSierra struct {
	records       []sierra.Record
	deletions     []sierra.Record
	attachedBibs  []sierra.Record
	attachedItems []sierra.Record
	locations     []sierra.CodeName
}

func (f *fakeSierra) CountRecords(_ context.Context, _ string, filter sierra.Filter) (int, error) {
	if filter.Deletions {
		return len(f.deletions), nil
	}
	return len(f.records), nil
}

func (f *fakeSierra) FetchRecords(_ context.Context, _ string, filter sierra.Filter, offset, limit int) ([]sierra.Record, error) {
	source := f.records
	if filter.Deletions {
		source = f.deletions
	}
	if offset >= len(source) {
		return nil, nil
	}
	end := offset + limit
	if end > len(source) {
		end = len(source)
	}
	return source[offset:end], nil
}

func (f *fakeSierra) FetchAttachedBibs(_ context.Context, _ []int64) ([]sierra.Record, error) {
	return f.attachedBibs, nil
}

func (f *fakeSierra) FetchAttachedItems(_ context.Context, _ []int64) ([]sierra.Record, error) {
	return f.attachedItems, nil
}

func (f *fakeSierra) FetchLocations(_ context.Context) ([]sierra.CodeName, error) {
	return f.locations, nil
}

func (f *fakeSierra) FetchItypes(_ context.Context) ([]sierra.CodeName, error) {
	return nil, nil
}

func (f *fakeSierra) FetchItemStatuses(_ context.Context) ([]sierra.CodeName, error) {
	return nil, nil
}

type fakeIndex struct {
	added      []solr.Document
	deletedIDs []string
	queries    []string
	commits    int
	optimizes  int
}

func (f *fakeIndex) Add(_ context.Context, docs []solr.Document) error {
	f.added = append(f.added, docs...)
	return nil
}

func (f *fakeIndex) DeleteByID(_ context.Context, ids []string) error {
	f.deletedIDs = append(f.deletedIDs, ids...)
	return nil
}

func (f *fakeIndex) DeleteByQuery(_ context.Context, query string) error {
	f.queries = append(f.queries, query)
	return nil
}

func (f *fakeIndex) Commit(_ context.Context) error {
	f.commits++
	return nil
}

func (f *fakeIndex) Optimize(_ context.Context) error {
	f.optimizes++
	return nil
}

type nopCloser struct{}

func (nopCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopCloser) Close() error                { return nil }

func testDeps(source *fakeSierra) (Deps, map[string]*fakeIndex) {
	indexes := map[string]*fakeIndex{
		IndexBibdata:  {},
		IndexHaystack: {},
		IndexMarc:     {},
	}
	deps := Deps{
		Sierra: source,
		Indexes: map[string]SolrIndex{
			IndexBibdata:  indexes[IndexBibdata],
			IndexHaystack: indexes[IndexHaystack],
			IndexMarc:     indexes[IndexMarc],
		},
		Log: NewJobLogWithWriter("test-instance", nopCloser{}),
	}
	return deps, indexes
}

func bibRecord(num int64) sierra.Record {
	return sierra.Record{
		ID:          num,
		RecordType:  "b",
		RecordNum:   num,
		LastUpdated: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBibsToSolrExportChunk(t *testing.T) {
	source := &fakeSierra{records: []sierra.Record{bibRecord(1000001), bibRecord(1000002)}}
	deps, indexes := testDeps(source)

	exporter := NewBibsToSolr(domain.ExportType{Code: "BibsToSolr"}, sierra.Filter{Code: domain.FilterFullExport}, deps)

	vals := NewVals()
	if err := exporter.ExportChunk(context.Background(), usecases.Chunk{Offset: 0, Limit: 10}, vals); err != nil {
		t.Fatalf("ExportChunk failed: %v", err)
	}

	// Bib documents land in all three cores.
	for _, name := range []string{IndexBibdata, IndexHaystack, IndexMarc} {
		if len(indexes[name].added) != 2 {
			t.Errorf("%s got %d docs, want 2", name, len(indexes[name].added))
		}
	}
	if indexes[IndexBibdata].added[0]["id"] != "b1000001" {
		t.Errorf("unexpected doc id: %v", indexes[IndexBibdata].added[0]["id"])
	}
	if list := vals.GetList("BibsToSolr", "exported_ids"); len(list) != 2 {
		t.Errorf("exported_ids = %v", list)
	}
}

func TestDeleteChunkRemovesByRecordNumber(t *testing.T) {
	deleted := bibRecord(1000003)
	now := time.Now()
	deleted.DeletionDate = &now
	source := &fakeSierra{deletions: []sierra.Record{deleted}}
	deps, indexes := testDeps(source)

	exporter := NewBibsToSolr(domain.ExportType{Code: "BibsToSolr"}, sierra.Filter{Code: domain.FilterFullExport}, deps)

	if err := exporter.DeleteChunk(context.Background(), usecases.Chunk{Offset: 0, Limit: 10}, NewVals()); err != nil {
		t.Fatalf("DeleteChunk failed: %v", err)
	}
	if len(indexes[IndexBibdata].deletedIDs) != 1 || indexes[IndexBibdata].deletedIDs[0] != "b1000003" {
		t.Errorf("unexpected deletions: %v", indexes[IndexBibdata].deletedIDs)
	}
}

func TestFinalCallbackCommitsAndOptimizesFullExports(t *testing.T) {
	source := &fakeSierra{}
	deps, indexes := testDeps(source)

	exporter := NewItemsToSolr(domain.ExportType{Code: "ItemsToSolr"}, sierra.Filter{Code: domain.FilterFullExport}, deps)
	if err := exporter.FinalCallback(context.Background(), NewVals()); err != nil {
		t.Fatalf("FinalCallback failed: %v", err)
	}

	if indexes[IndexHaystack].commits != 1 || indexes[IndexHaystack].optimizes != 1 {
		t.Errorf("haystack commits=%d optimizes=%d", indexes[IndexHaystack].commits, indexes[IndexHaystack].optimizes)
	}
	// Items only touch haystack.
	if indexes[IndexBibdata].commits != 0 {
		t.Errorf("bibdata should not be committed")
	}
}

func TestFinalCallbackSkipsOptimizeForIncrementalRuns(t *testing.T) {
	source := &fakeSierra{}
	deps, indexes := testDeps(source)

	exporter := NewItemsToSolr(domain.ExportType{Code: "ItemsToSolr"}, sierra.Filter{Code: domain.FilterLastExport, Latest: time.Now()}, deps)
	if err := exporter.FinalCallback(context.Background(), NewVals()); err != nil {
		t.Fatalf("FinalCallback failed: %v", err)
	}
	if indexes[IndexHaystack].optimizes != 0 {
		t.Error("incremental run should not optimize")
	}
}

func TestItemsBibsReindexesAttachedParents(t *testing.T) {
	item := sierra.Record{ID: 42, RecordType: "i", RecordNum: 2000001, LastUpdated: time.Now()}
	source := &fakeSierra{
		records:      []sierra.Record{item},
		attachedBibs: []sierra.Record{bibRecord(1000001)},
	}
	deps, indexes := testDeps(source)

	exporter := NewItemsBibsToSolr(domain.ExportType{Code: "ItemsBibsToSolr"}, sierra.Filter{Code: domain.FilterFullExport}, deps)

	vals := NewVals()
	if err := exporter.ExportChunk(context.Background(), usecases.Chunk{Offset: 0, Limit: 10}, vals); err != nil {
		t.Fatalf("ExportChunk failed: %v", err)
	}

	// One item doc plus one reindexed parent bib in haystack.
	if len(indexes[IndexHaystack].added) != 2 {
		t.Errorf("haystack got %d docs", len(indexes[IndexHaystack].added))
	}
	// The parent bib alone lands in bibdata and marc.
	if len(indexes[IndexBibdata].added) != 1 || len(indexes[IndexMarc].added) != 1 {
		t.Errorf("bibdata=%d marc=%d docs", len(indexes[IndexBibdata].added), len(indexes[IndexMarc].added))
	}
	if list := vals.GetList("ItemsBibsToSolr", "reindexed_bibs"); len(list) != 1 {
		t.Errorf("reindexed_bibs = %v", list)
	}
}

func TestBibsAndAttachedReindexesChildItems(t *testing.T) {
	items := []sierra.Record{
		{ID: 43, RecordType: "i", RecordNum: 2000001, LocationCode: "w4m", LastUpdated: time.Now()},
		{ID: 44, RecordType: "i", RecordNum: 2000002, LocationCode: "czm", LastUpdated: time.Now()},
	}
	source := &fakeSierra{
		records:       []sierra.Record{bibRecord(1000001)},
		attachedItems: items,
	}
	deps, indexes := testDeps(source)

	exporter := NewBibsAndAttachedToSolr(domain.ExportType{Code: "BibsAndAttachedToSolr"}, sierra.Filter{Code: domain.FilterFullExport}, deps)

	vals := NewVals()
	if err := exporter.ExportChunk(context.Background(), usecases.Chunk{Offset: 0, Limit: 10}, vals); err != nil {
		t.Fatalf("ExportChunk failed: %v", err)
	}

	// One bib doc plus its two reindexed child items in haystack.
	if len(indexes[IndexHaystack].added) != 3 {
		t.Errorf("haystack got %d docs", len(indexes[IndexHaystack].added))
	}
	// Only the bib lands in bibdata and marc.
	if len(indexes[IndexBibdata].added) != 1 || len(indexes[IndexMarc].added) != 1 {
		t.Errorf("bibdata=%d marc=%d docs", len(indexes[IndexBibdata].added), len(indexes[IndexMarc].added))
	}
	if list := vals.GetList("BibsAndAttachedToSolr", "reindexed_items"); len(list) != 2 {
		t.Errorf("reindexed_items = %v", list)
	}
}

func TestMetadataExporterReplacesTable(t *testing.T) {
	source := &fakeSierra{locations: []sierra.CodeName{
		{Code: "w4m", Name: "Music Library"},
		{Code: "", Name: "broken row"},
	}}
	deps, indexes := testDeps(source)

	exporter := NewLocationsToSolr(domain.ExportType{Code: "LocationsToSolr"}, sierra.Filter{}, deps)

	vals := NewVals()
	if err := exporter.ExportChunk(context.Background(), usecases.Chunk{}, vals); err != nil {
		t.Fatalf("ExportChunk failed: %v", err)
	}

	haystack := indexes[IndexHaystack]
	if len(haystack.queries) != 1 || haystack.queries[0] != "type:location" {
		t.Errorf("expected clearing query, got %v", haystack.queries)
	}
	if len(haystack.added) != 1 {
		t.Fatalf("expected 1 doc (empty code skipped), got %d", len(haystack.added))
	}
	if haystack.added[0]["id"] != "location:w4m" {
		t.Errorf("unexpected doc id: %v", haystack.added[0]["id"])
	}

	// The skipped row shows up as a warning.
	if _, warnings := deps.Log.Counts(); warnings != 1 {
		t.Errorf("expected 1 warning, got %d", warnings)
	}
}

func TestBuildUnknownType(t *testing.T) {
	deps, _ := testDeps(&fakeSierra{})
	if _, err := Build(domain.ExportType{Code: "Nope"}, sierra.Filter{}, deps); err == nil {
		t.Error("expected error for unregistered type")
	}
}
