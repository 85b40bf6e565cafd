package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAnalysisService for testing
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) ProcessAnalysisRequest(ctx context.Context, request *intake.AnalysisRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

// MockDeadLetterPublisher for testing
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestHandleMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	docID := uuid.New()
	validJSON, err := json.Marshal(intake.NewAnalysisRequest(docID, "corr-1"))
	assert.NoError(t, err)

	matchesDoc := mock.MatchedBy(func(req *intake.AnalysisRequest) bool {
		return req.DocumentID == docID && req.CorrelationID == "corr-1"
	})

	tests := []struct {
		name        string
		value       []byte
		setupMocks  func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher)
		expectedErr string
	}{
		{
			name:  "successful processing",
			value: validJSON,
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				svc.On("ProcessAnalysisRequest", mock.Anything, matchesDoc).Return(nil).Once()
			},
		},
		{
			name:  "extraction failure is recorded on the document and committed",
			value: validJSON,
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				svc.On("ProcessAnalysisRequest", mock.Anything, matchesDoc).
					Return(&extraction.Error{DocumentID: docID, Cause: errors.New("timeout")}).Once()
			},
		},
		{
			name:  "invalid transition goes to DLQ",
			value: validJSON,
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				svc.On("ProcessAnalysisRequest", mock.Anything, matchesDoc).
					Return(document.ErrInvalidTransition{ID: docID, From: document.StatusAnalyzed, To: document.StatusAnalyzing}).Once()
				dlq.On("PublishToDLQ", mock.Anything, "test-key", validJSON, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "unknown document goes to DLQ",
			value: validJSON,
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				svc.On("ProcessAnalysisRequest", mock.Anything, matchesDoc).Return(document.ErrDocumentNotFound{ID: docID}).Once()
				dlq.On("PublishToDLQ", mock.Anything, "test-key", validJSON, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "infrastructure error is retried",
			value: validJSON,
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				svc.On("ProcessAnalysisRequest", mock.Anything, matchesDoc).Return(errors.New("connection reset")).Once()
			},
			expectedErr: "processing analysis request",
		},
		{
			name:  "unmarshal error with successful DLQ publish",
			value: []byte("invalid json"),
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "test-key", []byte("invalid json"), mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "unmarshal error with DLQ publish failure",
			value: []byte("invalid json"),
			setupMocks: func(svc *MockAnalysisService, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "test-key", []byte("invalid json"), mock.Anything).Return(errors.New("dlq error")).Once()
			},
			expectedErr: "Failed to unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAnalysisService{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(svc, dlq)

			handler := NewAnalysisRequestHandler(logger, svc, dlq)
			err := handler.HandleMessage(context.Background(), []byte("test-key"), tt.value)

			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			svc.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}

	t.Run("without DLQ the error is returned", func(t *testing.T) {
		handler := NewAnalysisRequestHandler(logger, &MockAnalysisService{}, nil)
		err := handler.HandleMessage(context.Background(), []byte("k"), []byte("{"))
		assert.ErrorContains(t, err, "Failed to unmarshal")
	})
}
