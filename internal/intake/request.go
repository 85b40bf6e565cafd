package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyDocumentID rejects analysis requests that do not name a document
var ErrEmptyDocumentID = errors.New("analysis request has no document id")

// AnalysisRequest defines a Kafka message asking for a document to be analyzed
type AnalysisRequest struct {
	DocumentID    uuid.UUID `json:"document_id"`
	CorrelationID string    `json:"correlation_id"`
	RequestedAt   time.Time `json:"requested_at"`
}

func NewAnalysisRequest(id uuid.UUID, correlationID string) *AnalysisRequest {
	return &AnalysisRequest{
		DocumentID:    id,
		CorrelationID: correlationID,
		RequestedAt:   time.Now().UTC(),
	}
}

// AnalysisService processes analysis requests arriving from the queue
type AnalysisService interface {
	ProcessAnalysisRequest(ctx context.Context, request *AnalysisRequest) error
}

var _ AnalysisService = (*Pipeline)(nil)

// ProcessAnalysisRequest analyzes the requested document on the worker pool, or inline
// when the pipeline has none
func (p *Pipeline) ProcessAnalysisRequest(ctx context.Context, request *AnalysisRequest) error {
	if request.DocumentID == uuid.Nil {
		return ErrEmptyDocumentID
	}

	run := func(ctx context.Context) error {
		_, err := p.Analyze(ctx, request.DocumentID)
		return err
	}
	if p.pool == nil {
		return run(ctx)
	}
	return p.pool.Run(ctx, Task{Key: request.DocumentID.String(), Run: run})
}
