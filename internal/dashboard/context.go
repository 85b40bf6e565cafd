// Package dashboard holds the state the portfolio metrics are computed from.
package dashboard

import (
	"context"
	"fmt"

	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/domain/portfolio"
)

// Context bundles the document store, the alert registry and the seeded loans
type Context struct {
	Documents document.Repository
	Alerts    alert.Registry
	Seeds     []portfolio.Entry
}

// New builds a dashboard context. When seed is set the six starting loans are attached
// and the three starting alerts are added to the registry, unless it already holds alerts
// (a persistent registry that was seeded by an earlier run).
func New(ctx context.Context, docs document.Repository, alerts alert.Registry, seed bool) (*Context, error) {
	dc := &Context{Documents: docs, Alerts: alerts}
	if !seed {
		return dc, nil
	}

	dc.Seeds = portfolio.SeedEntries()

	existing, err := alerts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts before seeding: %w", err)
	}
	if len(existing) > 0 {
		return dc, nil
	}
	for _, a := range portfolio.SeedAlerts() {
		if err := alerts.Add(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to seed alert %q: %w", a.Title, err)
		}
	}
	return dc, nil
}
