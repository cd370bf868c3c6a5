package executor

import (
	"context"
	"time"

	"sierra-export/internal/core/domain"
)

// Notification carries everything a completion notice needs to render:
// which run finished, how it went, and where to look for details.
type Notification struct {
	InstanceID    string
	AdminURL      string
	Status        domain.Status
	Errors        int
	Warnings      int
	LogFile       string
	Timestamp     time.Time
	TypeCode      string
	TypeLabel     string
	FilterCode    string
	FilterLabel   string
	FilterOptions map[string]interface{}
	Username      string
}

// Notifier delivers a completion notice over one channel.
type Notifier interface {
	ExportComplete(ctx context.Context, notification Notification) error
}
