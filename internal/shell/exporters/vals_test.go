package exporters

import "testing"

func TestValsScalarOverwrites(t *testing.T) {
	vals := NewVals()
	vals.Set("BibsToSolr", "count", 10)
	vals.Set("BibsToSolr", "count", 20)

	got, _ := vals.Get("BibsToSolr", "count")
	if got != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestValsListAppendsWithoutDuplicates(t *testing.T) {
	vals := NewVals()
	vals.Set("EResourcesToSolr", "exported_ids", []interface{}{"e1", "e2"})
	vals.Set("EResourcesToSolr", "exported_ids", []interface{}{"e2", "e3"})

	list := vals.GetList("EResourcesToSolr", "exported_ids")
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %v", list)
	}
	if list[0] != "e1" || list[1] != "e2" || list[2] != "e3" {
		t.Errorf("unexpected order or contents: %v", list)
	}
}

func TestValsMapMergesKeys(t *testing.T) {
	vals := NewVals()
	vals.Set("ItemsToSolr", "seen", map[string]interface{}{"a": 1})
	vals.Set("ItemsToSolr", "seen", map[string]interface{}{"b": 2})

	got, _ := vals.Get("ItemsToSolr", "seen")
	merged := got.(map[string]interface{})
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("maps did not merge: %v", merged)
	}
}

func TestValsNamespacesAreIsolated(t *testing.T) {
	vals := NewVals()
	vals.Set("BibsToSolr", "count", 1)
	vals.Set("ItemsToSolr", "count", 2)

	if got, _ := vals.Get("BibsToSolr", "count"); got != 1 {
		t.Errorf("BibsToSolr count = %v", got)
	}
	if got, _ := vals.Get("ItemsToSolr", "count"); got != 2 {
		t.Errorf("ItemsToSolr count = %v", got)
	}
}

func TestValsTypeChangeOverwrites(t *testing.T) {
	vals := NewVals()
	vals.Set("X", "v", []interface{}{"a"})
	vals.Set("X", "v", "scalar")

	if got, _ := vals.Get("X", "v"); got != "scalar" {
		t.Errorf("expected overwrite, got %v", got)
	}
}

func TestValsMergeAll(t *testing.T) {
	vals := NewVals()
	vals.MergeAll("BibsToSolr", map[string]interface{}{
		"exported_ids": []interface{}{"b1"},
		"count":        5,
	})
	vals.MergeAll("BibsToSolr", map[string]interface{}{
		"exported_ids": []interface{}{"b2"},
	})

	if list := vals.GetList("BibsToSolr", "exported_ids"); len(list) != 2 {
		t.Errorf("expected merged list, got %v", list)
	}
	namespace := vals.Namespace("BibsToSolr")
	if namespace["count"] != 5 {
		t.Errorf("unexpected namespace contents: %v", namespace)
	}
}
