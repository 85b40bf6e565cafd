package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/aggregation"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/domain/portfolio"
	"github.com/lma-docpulse/internal/intake"
)

// DocumentService defines the interface for document intake operations
type DocumentService interface {
	// Upload stores the bytes and returns the READY record, or the ERROR record together
	// with the error when the transfer failed
	Upload(ctx context.Context, req intake.UploadRequest) (*document.Record, error)

	// GetDocument returns ErrDocumentNotFound if the document doesn't exist
	GetDocument(ctx context.Context, id uuid.UUID) (*document.Record, error)

	// ListDocuments returns every document in upload order
	ListDocuments(ctx context.Context) ([]*document.Record, error)

	// Analyze runs extraction synchronously
	Analyze(ctx context.Context, id uuid.UUID) (*document.Record, error)

	// RequestAnalysis queues the document for the intake worker.
	// Returns ErrAsyncAnalysisDisabled when no queue is configured
	RequestAnalysis(ctx context.Context, id uuid.UUID, correlationID string) error

	// AnalyzeReady analyzes every READY document
	AnalyzeReady(ctx context.Context) ([]intake.AnalysisResult, error)

	// Confirm moves a REVIEW document to ANALYZED
	Confirm(ctx context.Context, id uuid.UUID) (*document.Record, error)
}

// DashboardService defines the interface for the read side of the dashboard
type DashboardService interface {
	Metrics(ctx context.Context) (aggregation.Metrics, error)
	Portfolio(ctx context.Context) ([]portfolio.Entry, error)
	ListAlerts(ctx context.Context) ([]*alert.Alert, error)
	// AddAlert returns ErrInvalidSeverity for severities outside the closed set
	AddAlert(ctx context.Context, a *alert.Alert) (*alert.Alert, error)
}

// IntakePipeline is the subset of intake.Pipeline the service drives
type IntakePipeline interface {
	Upload(ctx context.Context, req intake.UploadRequest) (*document.Record, error)
	Analyze(ctx context.Context, id uuid.UUID) (*document.Record, error)
	ConfirmAnalyzed(ctx context.Context, id uuid.UUID) (*document.Record, error)
	AnalyzeReady(ctx context.Context) ([]intake.AnalysisResult, error)
}

var _ IntakePipeline = (*intake.Pipeline)(nil)
