package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Task is a unit of intake work keyed by the document it concerns
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// WorkerPool runs intake tasks on a bounded ants pool
type WorkerPool struct {
	pool   *ants.Pool
	logger *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) (*WorkerPool, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPool{
		pool:    pool,
		logger:  logger,
		results: make(map[string]chan error),
	}, nil
}

// Run submits task to the pool and waits for its result
func (w *WorkerPool) Run(ctx context.Context, task Task) error {
	resultChan, err := w.submit(ctx, task)
	if err != nil {
		return err
	}
	return <-resultChan
}

// RunAll submits every task and waits for all of them; errs[i] belongs to tasks[i]
func (w *WorkerPool) RunAll(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	chans := make([]chan error, len(tasks))
	for i, task := range tasks {
		resultChan, err := w.submit(ctx, task)
		if err != nil {
			errs[i] = err
			continue
		}
		chans[i] = resultChan
	}
	for i, resultChan := range chans {
		if resultChan != nil {
			errs[i] = <-resultChan
		}
	}
	return errs
}

func (w *WorkerPool) submit(ctx context.Context, task Task) (chan error, error) {
	resultChan := make(chan error, 1)

	w.mu.Lock()
	w.results[task.Key] = resultChan
	w.mu.Unlock()

	err := w.pool.Submit(func() {
		err := task.Run(ctx)
		resultChan <- err

		w.mu.Lock()
		if w.results[task.Key] == resultChan {
			delete(w.results, task.Key)
		}
		w.mu.Unlock()
	})

	if err != nil {
		w.mu.Lock()
		if w.results[task.Key] == resultChan {
			delete(w.results, task.Key)
		}
		w.mu.Unlock()

		w.logger.Error("Failed to submit task to worker pool",
			"document_id", task.Key,
			"error", err,
		)
		return nil, err
	}
	return resultChan, nil
}

// InFlight reports how many tasks have been submitted and not yet finished
func (w *WorkerPool) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.results)
}

// Shutdown releases the pool, waiting up to timeout for running tasks
func (w *WorkerPool) Shutdown(timeout time.Duration) {
	w.logger.Info("Shutting down worker pool", "running_workers", w.pool.Running(), "in_flight", w.InFlight())
	if err := w.pool.ReleaseTimeout(timeout); err != nil {
		w.logger.Warn("Worker pool did not drain before timeout", "error", err)
	}
}

// Capacity returns the capacity of the worker pool.
func (w *WorkerPool) Capacity() int {
	return w.pool.Cap()
}
