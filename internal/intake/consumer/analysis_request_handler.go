package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/intake"
	"github.com/lma-docpulse/internal/platform/messaging/producers"
)

// AnalysisRequestHandler handles incoming analysis request messages from Kafka
type AnalysisRequestHandler struct {
	service  intake.AnalysisService
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

func NewAnalysisRequestHandler(
	logger *slog.Logger,
	service intake.AnalysisService,
	producer producers.DeadLetterPublisher,
) *AnalysisRequestHandler {
	return &AnalysisRequestHandler{
		service:  service,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes one Kafka message. A nil return commits the offset.
func (h *AnalysisRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request intake.AnalysisRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal analysis request", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}
	logger = logger.With("document_id", request.DocumentID.String())
	logger.Info("Received analysis request")

	err := h.service.ProcessAnalysisRequest(ctx, &request)
	if err == nil {
		logger.Info("Successfully analyzed document")
		return nil
	}

	var extErr *extraction.Error
	switch {
	case errors.As(err, &extErr):
		// the failure is recorded on the document; redelivery would not change it
		logger.Warn("Document analysis failed", "error", err)
		return nil
	case errors.Is(err, intake.ErrEmptyDocumentID),
		errors.Is(err, document.ErrDocumentNotFound{}),
		errors.Is(err, document.ErrInvalidTransition{}):
		return h.deadLetter(ctx, key, value, "Analysis request cannot be processed", err)
	}

	logger.Error("Failed to process analysis request", "error", err)
	return fmt.Errorf("processing analysis request for %s failed: %w", request.DocumentID, err)
}

// deadLetter parks the message; when that fails the cause is returned so the offset stays
// uncommitted
func (h *AnalysisRequestHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	if h.producer != nil {
		reason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", msg, cause)
}
