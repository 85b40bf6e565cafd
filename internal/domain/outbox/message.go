package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// EventStatusChanged is the only event type written today
const EventStatusChanged = "document.status_changed"

// DocumentEvent is the lifecycle event relayed to the document_events topic
type DocumentEvent struct {
	DocumentID     uuid.UUID         `json:"document_id"`
	Filename       string            `json:"filename"`
	From           document.Status   `json:"from"`
	To             document.Status   `json:"to"`
	RiskFlag       document.RiskFlag `json:"risk_flag"`
	FacilityAmount *currency.Amount  `json:"facility_amount,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Version        int               `json:"version"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// NewStatusChangedEvent describes rec having moved from the given status
func NewStatusChangedEvent(rec *document.Record, from document.Status) *DocumentEvent {
	return &DocumentEvent{
		DocumentID:     rec.ID,
		Filename:       rec.Filename,
		From:           from,
		To:             rec.Status,
		RiskFlag:       rec.RiskFlag,
		FacilityAmount: rec.FacilityAmount,
		FailureReason:  rec.FailureReason,
		Version:        rec.Version,
		OccurredAt:     rec.UpdatedAt,
	}
}

// Message stores a document event for reliable publishing
type Message struct {
	ID            int64           `json:"id"`
	DocumentID    uuid.UUID       `json:"document_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

func NewMessage(event *DocumentEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		DocumentID: event.DocumentID,
		EventType:  EventStatusChanged,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// Event decodes the document event from the payload
func (m *Message) Event() (*DocumentEvent, error) {
	var event DocumentEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
