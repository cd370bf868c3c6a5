package messaging

import (
	"encoding/json"
	"time"

	"sierra-export/internal/core/domain"
)

// ExportEvent is the message published when an export run reaches a
// terminal status. Downstream consumers (cache invalidation, dashboards)
// key off EventType and the export type.
type ExportEvent struct {
	Version    string                 `json:"version"`
	EventType  string                 `json:"event_type"`
	Timestamp  string                 `json:"timestamp"` // RFC3339 format
	InstanceID string                 `json:"instance_id"`
	ExportType string                 `json:"export_type"`
	Filter     string                 `json:"export_filter"`
	Status     string                 `json:"status"`
	Errors     int                    `json:"errors"`
	Warnings   int                    `json:"warnings"`
	Username   string                 `json:"username"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

const (
	EventExportCompleted = "export-completed"
	EventExportFailed    = "export-failed"
)

// NewExportEvent builds the completion event for one finished instance.
func NewExportEvent(instanceID, exportType, filter string, status domain.Status,
	errors, warnings int, username string, context map[string]interface{}) *ExportEvent {

	eventType := EventExportCompleted
	if status == domain.StatusErrors {
		eventType = EventExportFailed
	}

	return &ExportEvent{
		Version:    "v1",
		EventType:  eventType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		InstanceID: instanceID,
		ExportType: exportType,
		Filter:     filter,
		Status:     string(status),
		Errors:     errors,
		Warnings:   warnings,
		Username:   username,
		Context:    context,
	}
}

func (e *ExportEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
