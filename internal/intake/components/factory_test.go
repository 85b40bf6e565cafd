package components

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/data/memory"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/intake"
	"github.com/lma-docpulse/internal/platform/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateObjectStore_Memory(t *testing.T) {
	store, err := CreateObjectStore(context.Background(), discardLogger(), &config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, store)
}

func TestCreateExtractor(t *testing.T) {
	store := storage.NewMemoryStore()

	pattern := CreateExtractor(discardLogger(), &config.ExtractionConfig{Mode: config.ExtractionModePattern}, store)
	assert.IsType(t, &extraction.PatternExtractor{}, pattern)

	remote := CreateExtractor(discardLogger(), &config.ExtractionConfig{
		Mode:    config.ExtractionModeHTTP,
		URL:     "http://extractor:8081",
		Timeout: time.Second,
	}, store)
	assert.IsType(t, &extraction.HTTPClient{}, remote)
}

func TestCreatePipeline(t *testing.T) {
	cfg := &config.Config{
		Intake:     config.IntakeConfig{AllowErrorRetry: true},
		Extraction: config.ExtractionConfig{Mode: config.ExtractionModePattern},
		WorkerPool: config.WorkerPoolConfig{Size: 2},
	}
	logger := discardLogger()
	docs := memory.NewDocumentStore(logger, TransitionPolicy(cfg))
	store := storage.NewMemoryStore()

	pipeline, pool := CreatePipeline(logger, cfg, docs, store)
	require.NotNil(t, pipeline)
	require.NotNil(t, pool)
	defer pool.Shutdown(time.Second)
	assert.Equal(t, 2, pool.Capacity())

	ctx := context.Background()
	rec, err := pipeline.Upload(ctx, intake.UploadRequest{
		Filename: "short.txt",
		Size:     5,
		Body:     strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, rec.Status)

	results, err := pipeline.AnalyzeReady(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, document.StatusAnalyzed, results[0].Record.Status)
}

func TestTransitionPolicy(t *testing.T) {
	cfg := &config.Config{Intake: config.IntakeConfig{AllowErrorRetry: false}}
	policy := TransitionPolicy(cfg)
	assert.False(t, policy.Allows(document.StatusError, document.StatusAnalyzing))
}
