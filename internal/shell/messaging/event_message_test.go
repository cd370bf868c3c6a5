package messaging

import (
	"encoding/json"
	"testing"

	"sierra-export/internal/core/domain"
)

func TestNewExportEvent(t *testing.T) {
	event := NewExportEvent("inst-1", "BibsToSolr", domain.FilterFullExport,
		domain.StatusSuccess, 0, 0, "jdoe", nil)

	if event.EventType != EventExportCompleted {
		t.Errorf("event type = %s", event.EventType)
	}
	if event.Status != "success" {
		t.Errorf("status = %s", event.Status)
	}
	if event.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestFailedRunsUseFailureEventType(t *testing.T) {
	event := NewExportEvent("inst-1", "BibsToSolr", domain.FilterFullExport,
		domain.StatusErrors, 5, 0, "jdoe", nil)

	if event.EventType != EventExportFailed {
		t.Errorf("event type = %s, want %s", event.EventType, EventExportFailed)
	}
}

func TestDoneWithErrorsStillCountsAsCompleted(t *testing.T) {
	event := NewExportEvent("inst-1", "BibsToSolr", domain.FilterFullExport,
		domain.StatusDoneWithErrors, 2, 0, "jdoe", nil)

	if event.EventType != EventExportCompleted {
		t.Errorf("event type = %s, want %s", event.EventType, EventExportCompleted)
	}
}

func TestExportEventJSON(t *testing.T) {
	event := NewExportEvent("inst-1", "ItemsToSolr", domain.FilterLocation,
		domain.StatusSuccess, 0, 1, "jdoe",
		map[string]interface{}{"location_code": "w4m"})

	payload, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["instance_id"] != "inst-1" {
		t.Errorf("instance_id = %v", decoded["instance_id"])
	}
	context := decoded["context"].(map[string]interface{})
	if context["location_code"] != "w4m" {
		t.Errorf("context = %v", context)
	}
}
