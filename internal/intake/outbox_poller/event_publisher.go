package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lma-docpulse/internal/domain/outbox"
	"github.com/lma-docpulse/internal/platform/messaging/producers"
)

// EventPublisher relays one outbox message to its destination
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// KafkaEventPublisher publishes document events to the events topic
type KafkaEventPublisher struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

func NewKafkaEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

var _ EventPublisher = (*KafkaEventPublisher)(nil)

// PublishEvent decodes the event, publishes it keyed by document id and marks the message
// processed. A payload that cannot be decoded is marked FAILED_TO_PUBLISH right away.
func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "document_id", message.DocumentID.String())

	event, err := message.Event()
	if err != nil {
		logger.Error("Failed to unmarshal document event from outbox payload", "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	if err := p.producer.Publish(ctx, event.DocumentID.String(), event); err != nil {
		return fmt.Errorf("failed to publish event for document %s: %w", event.DocumentID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("event for %s published, but failed to mark outbox %d as PROCESSED: %w", event.DocumentID, message.ID, err)
	}

	logger.Info("Document event published",
		"event_type", message.EventType,
		"from", string(event.From),
		"to", string(event.To),
	)
	return nil
}
