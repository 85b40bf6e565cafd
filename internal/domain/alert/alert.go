package alert

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity defines alert criticality
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ErrInvalidSeverity is the only validation the registry performs
var ErrInvalidSeverity = errors.New("severity must be one of INFO, WARNING, CRITICAL")

// Alert is a compliance finding tracked independently of documents
type Alert struct {
	ID          uuid.UUID `json:"id" bson:"_id"`
	Severity    Severity  `json:"severity" bson:"severity"`
	Title       string    `json:"title,omitempty" bson:"title,omitempty"`
	Description string    `json:"description" bson:"description"`
	// SourceDocumentID references a document or portfolio entry for lookup only
	SourceDocumentID string    `json:"source_document_id,omitempty" bson:"source_document_id,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// ParseSeverity validates s case-insensitively
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", ErrInvalidSeverity
}

// Prepare validates severity and fills in id and creation time when absent
func (a *Alert) Prepare() error {
	severity, err := ParseSeverity(string(a.Severity))
	if err != nil {
		return err
	}
	a.Severity = severity
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return nil
}

// References reports whether the alert points back at the given document or entry id
func (a *Alert) References(id string) bool {
	return a.SourceDocumentID != "" && a.SourceDocumentID == id
}

// Registry tracks alerts; consumers treat listed alerts as read-only
type Registry interface {
	Add(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id uuid.UUID) (*Alert, error)
	List(ctx context.Context) ([]*Alert, error)
}

// ErrAlertNotFound indicates missing alert
type ErrAlertNotFound struct {
	ID uuid.UUID
}

func (e ErrAlertNotFound) Error() string {
	return "alert not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrAlertNotFound
func (e ErrAlertNotFound) Is(target error) bool {
	t, ok := target.(ErrAlertNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}
