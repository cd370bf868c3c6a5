package executor

import (
	"context"
	"log"
)

// NullNotifier is the no-op notifier used when no delivery channel is
// configured.
type NullNotifier struct{}

func NewNullNotifier() *NullNotifier {
	return &NullNotifier{}
}

func (n *NullNotifier) ExportComplete(_ context.Context, notification Notification) error {
	log.Printf("No notifier configured - skipping completion notification for export: %s", notification.InstanceID)
	return nil
}
