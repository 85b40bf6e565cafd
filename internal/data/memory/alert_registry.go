package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/alert"
)

// AlertRegistry implements alert.Registry in memory, preserving insertion order
type AlertRegistry struct {
	mu     sync.RWMutex
	alerts []*alert.Alert
	byID   map[uuid.UUID]int
}

func NewAlertRegistry() *AlertRegistry {
	return &AlertRegistry{byID: make(map[uuid.UUID]int)}
}

var _ alert.Registry = (*AlertRegistry)(nil)

// Add validates severity, assigns id and creation time when missing and stores a copy
func (r *AlertRegistry) Add(ctx context.Context, a *alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.Prepare(); err != nil {
		return err
	}

	stored := *a
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.byID[stored.ID]; ok {
		r.alerts[idx] = &stored
		return nil
	}
	r.byID[stored.ID] = len(r.alerts)
	r.alerts = append(r.alerts, &stored)
	return nil
}

func (r *AlertRegistry) Get(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, alert.ErrAlertNotFound{ID: id}
	}
	a := *r.alerts[idx]
	return &a, nil
}

func (r *AlertRegistry) List(ctx context.Context) ([]*alert.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*alert.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}
