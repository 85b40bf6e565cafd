// Package aggregation rolls document records, alerts and seeded loans up into the
// dashboard's portfolio and compliance metrics. Nothing is cached: every call reads
// fresh snapshots from the dashboard context.
package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/dashboard"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/domain/portfolio"
)

const maxScore = 100

// Config holds the compliance weights
type Config struct {
	CriticalAlertPenalty int
	CriticalRiskPenalty  int
	// DedupSharedDocument counts a critical alert and the critical entry it names as one issue
	DedupSharedDocument bool
	Rounding            currency.RoundingMode
}

// ConfigFromCompliance maps the loaded compliance settings onto engine weights
func ConfigFromCompliance(c config.ComplianceConfig) Config {
	return Config{
		CriticalAlertPenalty: c.CriticalAlertPenalty,
		CriticalRiskPenalty:  c.CriticalRiskPenalty,
		DedupSharedDocument:  c.DedupSharedDocument,
		Rounding:             currency.RoundingMode(c.CurrencyRounding),
	}
}

// Metrics is a point-in-time view of the portfolio; it is never stored
type Metrics struct {
	ActiveLoanCount      int                       `json:"active_loan_count"`
	TotalExposure        currency.Amount           `json:"total_exposure"` // Stored in cents/minor units
	TotalExposureDisplay string                    `json:"total_exposure_display"`
	ComplianceScore      int                       `json:"compliance_score"`
	CriticalIssueCount   int                       `json:"critical_issue_count"`
	CriticalAlertCount   int                       `json:"critical_alert_count"`
	CriticalRiskCount    int                       `json:"critical_risk_count"`
	PendingApprovalCount int                       `json:"pending_approval_count"`
	RiskDistribution     map[document.RiskFlag]int `json:"risk_distribution"`
	StatusDistribution   map[document.Status]int   `json:"status_distribution"`
	ComputedAt           time.Time                 `json:"computed_at"`
}

// Engine computes Metrics
type Engine struct {
	cfg       Config
	formatter currency.Formatter
	logger    *slog.Logger
}

func NewEngine(logger *slog.Logger, cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		formatter: currency.NewFormatter(cfg.Rounding),
		logger:    logger,
	}
}

// Portfolio returns seeded entries followed by every contributing document
func (e *Engine) Portfolio(ctx context.Context, dc *dashboard.Context) ([]portfolio.Entry, error) {
	records, err := dc.Documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return portfolio.Build(dc.Seeds, records), nil
}

// Compute derives the dashboard metrics from the current state of dc
func (e *Engine) Compute(ctx context.Context, dc *dashboard.Context) (Metrics, error) {
	records, err := dc.Documents.List(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to list documents: %w", err)
	}
	alerts, err := dc.Alerts.List(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to list alerts: %w", err)
	}

	entries := portfolio.Build(dc.Seeds, records)

	m := Metrics{
		ActiveLoanCount:    len(entries),
		RiskDistribution:   make(map[document.RiskFlag]int, len(document.RiskFlags)),
		StatusDistribution: make(map[document.Status]int, len(document.Statuses)),
		ComputedAt:         time.Now(),
	}
	for _, rf := range document.RiskFlags {
		m.RiskDistribution[rf] = 0
	}
	for _, st := range document.Statuses {
		m.StatusDistribution[st] = 0
	}

	for _, rec := range records {
		m.StatusDistribution[rec.Status]++
		if rec.Status == document.StatusReview {
			m.PendingApprovalCount++
		}
	}

	amounts := make([]currency.Amount, 0, len(entries))
	criticalEntries := make(map[string]struct{})
	for _, entry := range entries {
		m.RiskDistribution[entry.RiskFlag]++
		if entry.RiskFlag == document.RiskCritical {
			criticalEntries[entry.ID] = struct{}{}
		}
		if entry.FacilityAmount == nil {
			e.logger.Debug("Portfolio entry has no facility amount", "entry_id", entry.ID)
			continue
		}
		amounts = append(amounts, *entry.FacilityAmount)
	}
	m.TotalExposure = currency.Sum(amounts...)
	m.TotalExposureDisplay = e.formatter.Format(m.TotalExposure)

	m.CriticalAlertCount, m.CriticalRiskCount = e.countIssues(alerts, criticalEntries)
	m.CriticalIssueCount = m.CriticalAlertCount + m.CriticalRiskCount
	m.ComplianceScore = clamp(
		maxScore-e.cfg.CriticalAlertPenalty*m.CriticalAlertCount-e.cfg.CriticalRiskPenalty*m.CriticalRiskCount,
		0, maxScore,
	)
	return m, nil
}

// countIssues returns critical alerts and critical-risk entries. Under the dedup policy an
// entry named by a critical alert is already counted through that alert.
func (e *Engine) countIssues(alerts []*alert.Alert, criticalEntries map[string]struct{}) (int, int) {
	criticalAlerts := 0
	covered := make(map[string]struct{})
	for _, a := range alerts {
		if a.Severity != alert.SeverityCritical {
			continue
		}
		criticalAlerts++
		for id := range criticalEntries {
			if a.References(id) {
				covered[id] = struct{}{}
			}
		}
	}

	criticalRisks := len(criticalEntries)
	if e.cfg.DedupSharedDocument {
		criticalRisks -= len(covered)
	}
	return criticalAlerts, criticalRisks
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
