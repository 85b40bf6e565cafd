// Package postgres provides PostgreSQL implementations of the domain repositories.
// Record-level mutual exclusion is a SELECT ... FOR UPDATE inside a transaction,
// and every status change writes an outbox message in that same transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/domain/outbox"
	"github.com/lma-docpulse/internal/platform/persistence"
)

const documentColumns = `id, filename, content_type, size_bytes, object_key, status, extracted_entities, facility_amount, risk_flag, failure_reason, version, created_at, updated_at, analyzed_at`

// DocumentRepository implements the document.Repository interface for PostgreSQL
type DocumentRepository struct {
	db      persistence.TxStarter
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	outbox  outbox.Repository
	policy  document.TransitionPolicy
	logger  *slog.Logger
}

// NewDocumentRepository creates a repository on the pool; outboxRepo may be nil when
// lifecycle events are not relayed
func NewDocumentRepository(logger *slog.Logger, db *persistence.PostgresDB, outboxRepo outbox.Repository, policy document.TransitionPolicy) *DocumentRepository {
	return newDocumentRepository(logger, db.Pool(), outboxRepo, policy)
}

func newDocumentRepository(logger *slog.Logger, db persistence.TxStarter, outboxRepo outbox.Repository, policy document.TransitionPolicy) *DocumentRepository {
	return &DocumentRepository{
		db:      db,
		querier: db,
		outbox:  outboxRepo,
		policy:  policy,
		logger:  logger,
	}
}

var _ document.Repository = (*DocumentRepository)(nil)

// WithTx returns a repository whose plain reads and writes run inside tx
func (r *DocumentRepository) WithTx(tx pgx.Tx) *DocumentRepository {
	c := *r
	c.querier = tx
	return &c
}

// Create inserts a new record in UPLOADING state
func (r *DocumentRepository) Create(ctx context.Context, filename string, meta document.Metadata) (*document.Record, error) {
	rec, err := document.NewRecord(filename, meta)
	if err != nil {
		return nil, err
	}

	entities, err := marshalEntities(rec.ExtractedEntities)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.querier.Exec(ctx, query,
		rec.ID,
		rec.Filename,
		rec.ContentType,
		rec.SizeBytes,
		rec.ObjectKey,
		string(rec.Status),
		entities,
		amountArg(rec.FacilityAmount),
		string(rec.RiskFlag),
		rec.FailureReason,
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.AnalyzedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", "filename", rec.Filename, "error", err)
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return rec, nil
}

// Get retrieves a document by its ID
func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	rec, err := scanRecord(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound{ID: id}
		}
		r.logger.Error("Failed to get document", "document_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return rec, nil
}

// List returns every document in insertion order
func (r *DocumentRepository) List(ctx context.Context) ([]*document.Record, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY seq ASC`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list documents", "error", err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var records []*document.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			r.logger.Error("Failed to scan document", "error", err)
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over documents: %w", err)
	}
	return records, nil
}

// UpdateStatus applies a single table-checked transition
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status document.Status) (*document.Record, error) {
	return r.Mutate(ctx, id, func(rec *document.Record) error {
		return rec.Transition(r.policy, status)
	})
}

// AttachExtraction records extraction facts and moves the record to final
func (r *DocumentRepository) AttachExtraction(ctx context.Context, id uuid.UUID, ext document.Extraction, final document.Status) (*document.Record, error) {
	return r.Mutate(ctx, id, func(rec *document.Record) error {
		return rec.AttachExtraction(r.policy, ext, final)
	})
}

// Mutate locks the row, applies fn and writes the result back in one transaction.
// A status change also enqueues a lifecycle event in the outbox.
func (r *DocumentRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(rec *document.Record) error) (*document.Record, error) {
	var result *document.Record

	err := persistence.InTx(ctx, r.db, func(tx pgx.Tx) error {
		txRepo := r.WithTx(tx)

		rec, err := txRepo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from, prevVersion := rec.Status, rec.Version
		if err := fn(rec); err != nil {
			return err
		}
		if err := txRepo.update(ctx, rec, prevVersion); err != nil {
			return err
		}

		if rec.Status != from && r.outbox != nil {
			msg, err := outbox.NewMessage(outbox.NewStatusChangedEvent(rec, from))
			if err != nil {
				return fmt.Errorf("failed to build document event: %w", err)
			}
			if err := r.outbox.WithTx(tx).Create(ctx, msg); err != nil {
				return err
			}
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LockForUpdate obtains a row lock on the document and returns its current state.
// Must be called within a transaction.
func (r *DocumentRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`

	rec, err := scanRecord(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound{ID: id}
		}
		r.logger.Error("Failed to lock document for update", "document_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock document for update: %w", err)
	}
	return rec, nil
}

func (r *DocumentRepository) update(ctx context.Context, rec *document.Record, prevVersion int) error {
	entities, err := marshalEntities(rec.ExtractedEntities)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET status = $1, extracted_entities = $2, facility_amount = $3, risk_flag = $4, failure_reason = $5, version = $6, updated_at = $7, analyzed_at = $8
		WHERE id = $9 AND version = $10
	`
	result, err := r.querier.Exec(ctx, query,
		string(rec.Status),
		entities,
		amountArg(rec.FacilityAmount),
		string(rec.RiskFlag),
		rec.FailureReason,
		rec.Version,
		rec.UpdatedAt,
		rec.AnalyzedAt,
		rec.ID,
		prevVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update document", "document_id", rec.ID.String(), "error", err)
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s changed concurrently at version %d", rec.ID, prevVersion)
	}
	return nil
}

func scanRecord(row pgx.Row) (*document.Record, error) {
	var (
		rec      document.Record
		status   string
		risk     string
		entities []byte
		amount   *int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.ContentType,
		&rec.SizeBytes,
		&rec.ObjectKey,
		&status,
		&entities,
		&amount,
		&risk,
		&rec.FailureReason,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = document.Status(status)
	rec.RiskFlag = document.RiskFlag(risk)
	if amount != nil {
		a := currency.Amount(*amount)
		rec.FacilityAmount = &a
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &rec.ExtractedEntities); err != nil {
			return nil, fmt.Errorf("failed to decode extracted entities: %w", err)
		}
		if len(rec.ExtractedEntities) == 0 {
			rec.ExtractedEntities = nil
		}
	}
	return &rec, nil
}

func marshalEntities(entities map[string]string) ([]byte, error) {
	if entities == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted entities: %w", err)
	}
	return b, nil
}

func amountArg(a *currency.Amount) *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}
