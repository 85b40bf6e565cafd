package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lma-docpulse/internal/api_gateway/service"
	"github.com/lma-docpulse/internal/domain/alert"
)

// DashboardHandler serves the portfolio dashboard
type DashboardHandler struct {
	dashboardService service.DashboardService
	logger           *slog.Logger
}

func NewDashboardHandler(logger *slog.Logger, dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Metrics returns the aggregated portfolio metrics
func (h *DashboardHandler) Metrics(c *gin.Context) {
	m, err := h.dashboardService.Metrics(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "metrics", err)
		return
	}
	RespondOK(c, mapMetrics(m))
}

func (h *DashboardHandler) Portfolio(c *gin.Context) {
	entries, err := h.dashboardService.Portfolio(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "portfolio", err)
		return
	}

	resp := make([]PortfolioEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, mapPortfolioEntry(e))
	}
	RespondOK(c, resp)
}

func (h *DashboardHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.dashboardService.ListAlerts(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "list_alerts", err)
		return
	}

	resp := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, mapAlertToResponse(a))
	}
	RespondOK(c, resp)
}

// CreateAlert registers a compliance alert. Severity is case-insensitive.
func (h *DashboardHandler) CreateAlert(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.dashboardService.AddAlert(c.Request.Context(), &alert.Alert{
		Severity:         alert.Severity(req.Severity),
		Title:            req.Title,
		Description:      req.Description,
		SourceDocumentID: req.SourceDocumentID,
	})
	if err != nil {
		respondServiceError(c, h.logger, "create_alert", err)
		return
	}
	RespondCreated(c, mapAlertToResponse(created))
}
