package service

import (
	"context"
	"log/slog"

	"github.com/lma-docpulse/internal/aggregation"
	"github.com/lma-docpulse/internal/dashboard"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/portfolio"
)

// DashboardServiceImpl implements the DashboardService interface
type DashboardServiceImpl struct {
	engine *aggregation.Engine
	dc     *dashboard.Context
	logger *slog.Logger
}

func NewDashboardService(logger *slog.Logger, engine *aggregation.Engine, dc *dashboard.Context) DashboardService {
	return &DashboardServiceImpl{
		engine: engine,
		dc:     dc,
		logger: logger,
	}
}

func (s *DashboardServiceImpl) Metrics(ctx context.Context) (aggregation.Metrics, error) {
	return s.engine.Compute(ctx, s.dc)
}

func (s *DashboardServiceImpl) Portfolio(ctx context.Context) ([]portfolio.Entry, error) {
	return s.engine.Portfolio(ctx, s.dc)
}

func (s *DashboardServiceImpl) ListAlerts(ctx context.Context) ([]*alert.Alert, error) {
	return s.dc.Alerts.List(ctx)
}

// AddAlert registers a and returns the stored copy with its assigned id
func (s *DashboardServiceImpl) AddAlert(ctx context.Context, a *alert.Alert) (*alert.Alert, error) {
	if err := s.dc.Alerts.Add(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("Alert registered",
		"alert_id", a.ID.String(),
		"severity", string(a.Severity),
		"source_document_id", a.SourceDocumentID,
	)
	return s.dc.Alerts.Get(ctx, a.ID)
}
