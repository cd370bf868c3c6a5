package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusInProgress     Status = "in_progress"
	StatusSuccess        Status = "success"
	StatusDoneWithErrors Status = "done_with_errors"
	StatusErrors         Status = "errors"
	StatusUnknown        Status = "unknown"
)

// ExportInstance is one run of an export job: who triggered it, what
// type and filter it used, and the error/warning counts accumulated
// while it ran.
type ExportInstance struct {
	ID         string                 `json:"id"`
	ExportType string                 `json:"export_type"`
	Filter     string                 `json:"export_filter"`
	Options    map[string]interface{} `json:"filter_options,omitempty"`
	Username   string                 `json:"username"`
	Timestamp  time.Time              `json:"timestamp"`
	Status     Status                 `json:"status"`
	Errors     int                    `json:"errors"`
	Warnings   int                    `json:"warnings"`
}

func NewExportInstance(exportType, filter string, options map[string]interface{}, username string) ExportInstance {
	return ExportInstance{
		ID:         uuid.New().String(),
		ExportType: exportType,
		Filter:     filter,
		Options:    options,
		Username:   username,
		Timestamp:  time.Now().UTC(),
		Status:     StatusWaiting,
		Errors:     0,
		Warnings:   0,
	}
}

func (i ExportInstance) WithStatus(status Status) ExportInstance {
	updated := i
	updated.Status = status
	return updated
}

// WithCounts returns a copy with the error/warning counters replaced.
// Counters only ever grow over the life of an instance.
func (i ExportInstance) WithCounts(errors, warnings int) ExportInstance {
	updated := i
	if errors > updated.Errors {
		updated.Errors = errors
	}
	if warnings > updated.Warnings {
		updated.Warnings = warnings
	}
	return updated
}

// FinalStatus resolves the terminal status for a run that completed
// normally: success, unless errors were logged along the way.
func (i ExportInstance) FinalStatus() Status {
	if i.Errors > 0 {
		return StatusDoneWithErrors
	}
	return StatusSuccess
}

// Finished reports whether the instance has reached a terminal status.
func (i ExportInstance) Finished() bool {
	switch i.Status {
	case StatusSuccess, StatusDoneWithErrors, StatusErrors:
		return true
	default:
		return false
	}
}

func (i ExportInstance) ToJSON() ([]byte, error) {
	return json.Marshal(i)
}

func ExportInstanceFromJSON(data []byte) (ExportInstance, error) {
	var instance ExportInstance
	err := json.Unmarshal(data, &instance)
	return instance, err
}

func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusWaiting, StatusInProgress, StatusSuccess, StatusDoneWithErrors, StatusErrors, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus maps a stored status string onto the known set. Rows
// written by older deployments may carry a status we no longer define;
// those load as StatusUnknown rather than failing the read.
func ParseStatus(s string) Status {
	if IsValidStatus(s) {
		return Status(s)
	}
	return StatusUnknown
}
