package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Repository stores document records in insertion order. Every mutation runs inside a
// per-record mutual-exclusion scope; reads return copies.
type Repository interface {
	Create(ctx context.Context, filename string, meta Metadata) (*Record, error)
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context) ([]*Record, error)

	// UpdateStatus fails with ErrInvalidTransition if the move is not in the transition table
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Record, error)

	// AttachExtraction is only legal while the record is ANALYZING
	AttachExtraction(ctx context.Context, id uuid.UUID, ext Extraction, final Status) (*Record, error)

	// Mutate applies fn to a copy of the record under the record's lock and persists it
	// only when fn returns nil
	Mutate(ctx context.Context, id uuid.UUID, fn func(r *Record) error) (*Record, error)
}

// ErrDocumentNotFound indicates missing document record
type ErrDocumentNotFound struct {
	ID uuid.UUID
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrDocumentNotFound
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	// A zero ID matches any ErrDocumentNotFound
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrInvalidTransition indicates a lifecycle call on a record not in the required state
type ErrInvalidTransition struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition for document %s: %s -> %s", e.ID, e.From, e.To)
}

// Is implements the errors.Is interface for ErrInvalidTransition
func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
