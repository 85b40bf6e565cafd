// Package memory provides in-process implementations of the domain repositories,
// used when no external database is configured and in tests.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/document"
)

// DocumentStore implements document.Repository over an insertion-ordered map.
// The store-wide RWMutex guards the map; each record additionally has its own
// mutex that serializes mutations of that record.
type DocumentStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*document.Record
	locks   map[uuid.UUID]*sync.Mutex
	order   []uuid.UUID

	policy document.TransitionPolicy
	logger *slog.Logger
}

// NewDocumentStore creates an empty store applying policy to every transition
func NewDocumentStore(logger *slog.Logger, policy document.TransitionPolicy) *DocumentStore {
	return &DocumentStore{
		records: make(map[uuid.UUID]*document.Record),
		locks:   make(map[uuid.UUID]*sync.Mutex),
		policy:  policy,
		logger:  logger,
	}
}

var _ document.Repository = (*DocumentStore)(nil)

// Create stores a new record in UPLOADING state
func (s *DocumentStore) Create(ctx context.Context, filename string, meta document.Metadata) (*document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := document.NewRecord(filename, meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.locks[rec.ID] = &sync.Mutex{}
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()

	s.logger.Debug("Document record created", "document_id", rec.ID.String(), "filename", rec.Filename)
	return rec.Clone(), nil
}

// Get returns a copy of the record
func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, document.ErrDocumentNotFound{ID: id}
	}
	return rec.Clone(), nil
}

// List returns copies of all records in insertion order, taken under one read lock
func (s *DocumentStore) List(ctx context.Context) ([]*document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*document.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// UpdateStatus applies a single table-checked transition
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status document.Status) (*document.Record, error) {
	return s.Mutate(ctx, id, func(r *document.Record) error {
		return r.Transition(s.policy, status)
	})
}

// AttachExtraction records extraction facts and moves the record to final
func (s *DocumentStore) AttachExtraction(ctx context.Context, id uuid.UUID, ext document.Extraction, final document.Status) (*document.Record, error) {
	return s.Mutate(ctx, id, func(r *document.Record) error {
		return r.AttachExtraction(s.policy, ext, final)
	})
}

// Mutate runs fn on a copy of the record while holding the record's lock and
// swaps the copy in only when fn succeeds
func (s *DocumentStore) Mutate(ctx context.Context, id uuid.UUID, fn func(r *document.Record) error) (*document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, document.ErrDocumentNotFound{ID: id}
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	working := s.records[id].Clone()
	s.mu.RUnlock()

	from := working.Status
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[id] = working
	s.mu.Unlock()

	if working.Status != from {
		s.logger.Debug("Document status changed",
			"document_id", id.String(),
			"from", string(from),
			"to", string(working.Status),
		)
	}
	return working.Clone(), nil
}

// Len reports how many records the store holds
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
