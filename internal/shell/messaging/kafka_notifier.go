package messaging

import (
	"context"
	"fmt"
	"log"

	"sierra-export/internal/shell/executor"
)

// KafkaNotifier publishes completion events for finished exports.
type KafkaNotifier struct {
	producer *KafkaProducer
}

func NewKafkaNotifier(producer *KafkaProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) ExportComplete(_ context.Context, notification executor.Notification) error {
	event := NewExportEvent(
		notification.InstanceID,
		notification.TypeCode,
		notification.FilterCode,
		notification.Status,
		notification.Errors,
		notification.Warnings,
		notification.Username,
		notification.FilterOptions,
	)

	payload, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal export event: %w", err)
	}

	headers := map[string]string{"event_type": event.EventType}
	if err := n.producer.SendMessage(notification.TypeCode, payload, headers); err != nil {
		log.Printf("Failed to publish export event for %s: %v", notification.InstanceID, err)
		return err
	}
	return nil
}
