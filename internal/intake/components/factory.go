// Package components builds the intake collaborators from configuration.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/intake"
	"github.com/lma-docpulse/internal/platform/storage"
)

// CreateObjectStore returns the configured byte store. The MinIO bucket is created if missing.
func CreateObjectStore(ctx context.Context, logger *slog.Logger, cfg *config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Backend != config.BackendMinio {
		logger.Info("Using in-memory object store")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.NewMinioStore(logger.With("component", "object_store"), cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket %q: %w", cfg.Bucket, err)
	}
	logger.Info("Using MinIO object store", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return store, nil
}

// CreateExtractor returns the remote extraction client or the local pattern extractor
func CreateExtractor(logger *slog.Logger, cfg *config.ExtractionConfig, store storage.ObjectStore) extraction.Extractor {
	if cfg.Mode == config.ExtractionModeHTTP {
		logger.Info("Using remote extraction service", "url", cfg.URL, "rate_limit", cfg.RateLimit)
		return extraction.NewHTTPClient(logger.With("component", "extraction"), cfg, store)
	}
	logger.Info("Using pattern extractor")
	return extraction.NewPatternExtractor(logger.With("component", "extraction"), store)
}

// CreatePipeline wires the intake pipeline over docs and store. When the worker pool
// cannot be created the pipeline runs batch analysis sequentially and the returned pool is nil.
func CreatePipeline(
	logger *slog.Logger,
	cfg *config.Config,
	docs document.Repository,
	store storage.ObjectStore,
) (*intake.Pipeline, *intake.WorkerPool) {
	extractor := CreateExtractor(logger, &cfg.Extraction, store)

	pool, err := intake.NewWorkerPool(
		intake.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool, falling back to sequential analysis", "error", err)
		pool = nil
	} else {
		logger.Info("Created analysis worker pool", "pool_size", pool.Capacity())
	}

	pipeline := intake.NewPipeline(
		logger.With("component", "pipeline"),
		docs,
		store,
		extractor,
		pool,
		intake.Config{
			DraftMarkers:    cfg.Intake.DraftMarkers,
			AllowErrorRetry: cfg.Intake.AllowErrorRetry,
		},
	)
	return pipeline, pool
}

// TransitionPolicy returns the status policy shared by the pipeline and the stores
func TransitionPolicy(cfg *config.Config) document.TransitionPolicy {
	return document.TransitionPolicy{AllowErrorRetry: cfg.Intake.AllowErrorRetry}
}
