// Package extraction talks to the collaborators that turn a stored loan document into
// structured facts. The intake pipeline owns what happens with those facts.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/document"
)

// ErrMissingCredential is the cause when no API key is configured for the remote service
var ErrMissingCredential = errors.New("extraction service credential is not configured")

// Reference identifies the document to extract from
type Reference struct {
	DocumentID  uuid.UUID
	Filename    string
	ObjectKey   string
	ContentType string
}

// Result is what an extractor found. Amount and risk are raw strings; the pipeline
// parses and validates them.
type Result struct {
	Entities       map[string]string
	FacilityAmount string
	RiskFlag       string
	Content        string   // extracted text, used for draft classification
	Findings       []string // compliance observations, e.g. missing clauses
}

// Extractor turns a document reference into extracted facts
type Extractor interface {
	Extract(ctx context.Context, ref Reference) (*Result, error)
}

// Error wraps any failure of an extraction attempt
type Error struct {
	DocumentID uuid.UUID
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed for document %s: %v", e.DocumentID, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func fail(id uuid.UUID, cause error) *Error {
	return &Error{DocumentID: id, Cause: cause}
}

// NormalizeRiskFlag maps the risk vocabulary used by extractors ("Low", "High",
// "Critical", ...) onto the closed risk flag set. HIGH counts as CRITICAL.
func NormalizeRiskFlag(raw string) (document.RiskFlag, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "NONE":
		return document.RiskNone, nil
	case "LOW":
		return document.RiskLow, nil
	case "MEDIUM", "MODERATE":
		return document.RiskMedium, nil
	case "HIGH", "CRITICAL":
		return document.RiskCritical, nil
	}
	return "", fmt.Errorf("%w: %q", document.ErrInvalidRiskFlag, raw)
}
