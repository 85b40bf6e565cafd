// Package intake drives uploaded loan documents through the lifecycle
// UPLOADING → READY → ANALYZING → {ANALYZED | REVIEW | ERROR}, with REVIEW → ANALYZED
// on manual confirmation.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/platform/storage"
)

// FindingsEntity is the extracted-entity key holding compliance findings
const FindingsEntity = "compliance_findings"

// Config holds intake policy
type Config struct {
	// DraftMarkers send a document to REVIEW when found in its filename or content
	DraftMarkers    []string
	AllowErrorRetry bool
}

// UploadRequest describes bytes being handed to the pipeline
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// AnalysisResult is the outcome of one document in a batch analysis
type AnalysisResult struct {
	DocumentID uuid.UUID
	Record     *document.Record
	Err        error
}

// Pipeline owns every status transition of a document record
type Pipeline struct {
	docs      document.Repository
	store     storage.ObjectStore
	extractor extraction.Extractor
	pool      *WorkerPool

	policy document.TransitionPolicy
	drafts *regexp.Regexp // nil when no markers are configured
	logger *slog.Logger
}

// NewPipeline wires the collaborators; pool may be nil, in which case batch analysis
// runs sequentially
func NewPipeline(
	logger *slog.Logger,
	docs document.Repository,
	store storage.ObjectStore,
	extractor extraction.Extractor,
	pool *WorkerPool,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		docs:      docs,
		store:     store,
		extractor: extractor,
		pool:      pool,
		policy:    document.TransitionPolicy{AllowErrorRetry: cfg.AllowErrorRetry},
		drafts:    draftPattern(cfg.DraftMarkers),
		logger:    logger,
	}
}

// draftPattern matches any marker as a whole word: letters may not touch it on either
// side, so "draft_v2" matches and "overdraft" does not
func draftPattern(markers []string) *regexp.Regexp {
	alternatives := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			alternatives = append(alternatives, regexp.QuoteMeta(m))
		}
	}
	if len(alternatives) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:^|\PL)(?:` + strings.Join(alternatives, "|") + `)(?:\PL|$)`)
}

// Upload creates the record, transfers the bytes and marks it READY. When the transfer
// fails the record is moved to ERROR and returned together with the error.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*document.Record, error) {
	rec, err := p.docs.Create(ctx, req.Filename, document.Metadata{
		ContentType: req.ContentType,
		SizeBytes:   req.Size,
	})
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("document_id", rec.ID.String())

	if err := p.store.Put(ctx, rec.ObjectKey, req.Body, req.Size, req.ContentType); err != nil {
		logger.Error("Failed to store document bytes", "error", err)
		failed, failErr := p.fail(ctx, rec.ID, fmt.Sprintf("upload failed: %v", err))
		if failErr != nil {
			logger.Error("Failed to record upload failure", "error", failErr)
			failed = rec
		}
		return failed, fmt.Errorf("failed to store document %s: %w", rec.ID, err)
	}

	// The bytes are stored; a caller that went away must not strand the record in UPLOADING.
	ready, err := p.docs.UpdateStatus(context.WithoutCancel(ctx), rec.ID, document.StatusReady)
	if err != nil {
		logger.Error("Failed to mark document ready", "error", err)
		failed, failErr := p.fail(ctx, rec.ID, fmt.Sprintf("upload failed: %v", err))
		if failErr != nil {
			logger.Error("Failed to record upload failure", "error", failErr)
			return nil, errors.Join(err, failErr)
		}
		return failed, fmt.Errorf("failed to mark document %s ready: %w", rec.ID, err)
	}
	logger.Info("Document uploaded", "filename", ready.Filename, "size_bytes", ready.SizeBytes)
	return ready, nil
}

// Analyze runs extraction for a READY document (or an ERROR one when retry is enabled).
// Extraction failures leave the record in ERROR and are returned as *extraction.Error.
func (p *Pipeline) Analyze(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	logger := p.logger.With("document_id", id.String())

	rec, err := p.docs.UpdateStatus(ctx, id, document.StatusAnalyzing)
	if err != nil {
		return nil, err
	}

	result, err := p.extractor.Extract(ctx, extraction.Reference{
		DocumentID:  rec.ID,
		Filename:    rec.Filename,
		ObjectKey:   rec.ObjectKey,
		ContentType: rec.ContentType,
	})
	if err != nil {
		var extErr *extraction.Error
		if !errors.As(err, &extErr) {
			extErr = &extraction.Error{DocumentID: id, Cause: err}
		}
		logger.Warn("Document extraction failed", "error", extErr.Cause)

		failed, failErr := p.fail(ctx, id, extErr.Cause.Error())
		if failErr != nil {
			return nil, errors.Join(extErr, failErr)
		}
		return failed, extErr
	}

	ext := document.Extraction{
		Entities:       result.Entities,
		FacilityAmount: p.parseAmount(logger, result.FacilityAmount),
		RiskFlag:       p.riskFlag(logger, result.RiskFlag),
	}
	if len(result.Findings) > 0 {
		entities := make(map[string]string, len(result.Entities)+1)
		for k, v := range result.Entities {
			entities[k] = v
		}
		entities[FindingsEntity] = strings.Join(result.Findings, "; ")
		ext.Entities = entities
	}

	final := document.StatusAnalyzed
	if p.isDraft(rec.Filename, result.Content) {
		final = document.StatusReview
	}

	analyzed, err := p.docs.AttachExtraction(ctx, id, ext, final)
	if err != nil {
		logger.Error("Failed to attach extraction", "error", err)
		if _, failErr := p.fail(ctx, id, fmt.Sprintf("failed to record extraction: %v", err)); failErr != nil {
			logger.Error("Failed to record analysis failure", "error", failErr)
		}
		return nil, err
	}

	logger.Info("Document analyzed",
		"status", string(analyzed.Status),
		"risk_flag", string(analyzed.RiskFlag),
	)
	return analyzed, nil
}

// ConfirmAnalyzed moves a REVIEW document to ANALYZED
func (p *Pipeline) ConfirmAnalyzed(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	rec, err := p.docs.Mutate(ctx, id, func(r *document.Record) error {
		if r.Status != document.StatusReview {
			return document.ErrInvalidTransition{ID: r.ID, From: r.Status, To: document.StatusAnalyzed}
		}
		return r.Transition(p.policy, document.StatusAnalyzed)
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("Document confirmed", "document_id", id.String())
	return rec, nil
}

// Abandon moves a document stuck in ANALYZING to ERROR with reason
func (p *Pipeline) Abandon(ctx context.Context, id uuid.UUID, reason string) (*document.Record, error) {
	rec, err := p.docs.Mutate(ctx, id, func(r *document.Record) error {
		if r.Status != document.StatusAnalyzing {
			return document.ErrInvalidTransition{ID: r.ID, From: r.Status, To: document.StatusError}
		}
		return r.Fail(p.policy, reason)
	})
	if err != nil {
		return nil, err
	}
	p.logger.Warn("Document analysis abandoned", "document_id", id.String(), "reason", reason)
	return rec, nil
}

// AnalyzeReady analyzes every READY document, concurrently when a worker pool is set.
// Results follow store order.
func (p *Pipeline) AnalyzeReady(ctx context.Context) ([]AnalysisResult, error) {
	records, err := p.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var results []AnalysisResult
	for _, rec := range records {
		if rec.Status == document.StatusReady {
			results = append(results, AnalysisResult{DocumentID: rec.ID})
		}
	}
	if len(results) == 0 {
		return results, nil
	}

	tasks := make([]Task, len(results))
	for i := range results {
		res := &results[i]
		tasks[i] = Task{
			Key: res.DocumentID.String(),
			Run: func(ctx context.Context) error {
				rec, err := p.Analyze(ctx, res.DocumentID)
				res.Record = rec
				return err
			},
		}
	}

	if p.pool == nil {
		for i, task := range tasks {
			results[i].Err = task.Run(ctx)
		}
		return results, nil
	}

	for i, err := range p.pool.RunAll(ctx, tasks) {
		results[i].Err = err
	}
	return results, nil
}

// fail records reason on the document; it must not be skipped when the caller's
// context is already done, or the record would stay in its current state
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, reason string) (*document.Record, error) {
	return p.docs.Mutate(context.WithoutCancel(ctx), id, func(r *document.Record) error {
		return r.Fail(p.policy, reason)
	})
}

func (p *Pipeline) parseAmount(logger *slog.Logger, raw string) *currency.Amount {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	amount, err := currency.Parse(raw)
	if err != nil {
		logger.Warn("Ignoring unparsable facility amount", "amount", raw, "error", err)
		return nil
	}
	return &amount
}

func (p *Pipeline) riskFlag(logger *slog.Logger, raw string) document.RiskFlag {
	flag, err := extraction.NormalizeRiskFlag(raw)
	if err != nil {
		logger.Warn("Ignoring unknown risk flag", "risk_flag", raw, "error", err)
		return document.RiskNone
	}
	return flag
}

func (p *Pipeline) isDraft(filename, content string) bool {
	if p.drafts == nil {
		return false
	}
	return p.drafts.MatchString(filename) || p.drafts.MatchString(content)
}
