package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/api_gateway/middleware"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/intake"
	"github.com/lma-docpulse/internal/platform/messaging/producers"
)

// ErrAsyncAnalysisDisabled is returned by RequestAnalysis when Kafka is not configured
var ErrAsyncAnalysisDisabled = errors.New("asynchronous analysis is not enabled")

// DocumentServiceImpl implements the DocumentService interface
type DocumentServiceImpl struct {
	pipeline IntakePipeline
	docs     document.Repository
	producer producers.MessagePublisher // nil when Kafka is disabled
	logger   *slog.Logger
}

// NewDocumentService creates a new document service; producer may be nil
func NewDocumentService(
	logger *slog.Logger,
	pipeline IntakePipeline,
	docs document.Repository,
	producer producers.MessagePublisher,
) DocumentService {
	return &DocumentServiceImpl{
		pipeline: pipeline,
		docs:     docs,
		producer: producer,
		logger:   logger,
	}
}

func (s *DocumentServiceImpl) Upload(ctx context.Context, req intake.UploadRequest) (*document.Record, error) {
	rec, err := s.pipeline.Upload(ctx, req)
	if err != nil {
		return rec, err
	}
	s.logger.Info("Document uploaded",
		"document_id", rec.ID.String(),
		"filename", rec.Filename,
		"size_bytes", rec.SizeBytes,
		"correlation_id", middleware.CorrelationIDFromContext(ctx),
	)
	return rec, nil
}

func (s *DocumentServiceImpl) GetDocument(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	return s.docs.Get(ctx, id)
}

func (s *DocumentServiceImpl) ListDocuments(ctx context.Context) ([]*document.Record, error) {
	return s.docs.List(ctx)
}

func (s *DocumentServiceImpl) Analyze(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	return s.pipeline.Analyze(ctx, id)
}

// RequestAnalysis checks the document can enter analysis before publishing, so callers get
// not-found and state errors synchronously
func (s *DocumentServiceImpl) RequestAnalysis(ctx context.Context, id uuid.UUID, correlationID string) error {
	if s.producer == nil {
		return ErrAsyncAnalysisDisabled
	}

	rec, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != document.StatusReady && rec.Status != document.StatusError {
		return document.ErrInvalidTransition{ID: id, From: rec.Status, To: document.StatusAnalyzing}
	}

	request := intake.NewAnalysisRequest(id, correlationID)
	if err := s.producer.Publish(ctx, id.String(), request); err != nil {
		s.logger.Error("Failed to publish analysis request",
			"document_id", id.String(),
			"error", err,
		)
		return err
	}

	s.logger.Info("Analysis request published",
		"document_id", id.String(),
		"correlation_id", correlationID,
	)
	return nil
}

func (s *DocumentServiceImpl) AnalyzeReady(ctx context.Context) ([]intake.AnalysisResult, error) {
	results, err := s.pipeline.AnalyzeReady(ctx)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	s.logger.Info("Batch analysis finished",
		"documents", len(results),
		"failed", failed,
		"correlation_id", middleware.CorrelationIDFromContext(ctx),
	)
	return results, nil
}

func (s *DocumentServiceImpl) Confirm(ctx context.Context, id uuid.UUID) (*document.Record, error) {
	return s.pipeline.ConfirmAnalyzed(ctx, id)
}
