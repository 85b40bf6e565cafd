package handler

import (
	"time"

	"github.com/lma-docpulse/internal/aggregation"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/domain/portfolio"
	"github.com/lma-docpulse/internal/intake"
)

// DocumentResponse represents a document record in API responses
type DocumentResponse struct {
	ID                    string            `json:"id"`
	Filename              string            `json:"filename"`
	ContentType           string            `json:"content_type,omitempty"`
	SizeBytes             int64             `json:"size_bytes"`
	Status                string            `json:"status"`
	ExtractedEntities     map[string]string `json:"extracted_entities,omitempty"`
	FacilityAmount        *int64            `json:"facility_amount,omitempty"` // Stored in cents/minor units
	FacilityAmountDisplay string            `json:"facility_amount_display,omitempty"`
	RiskFlag              string            `json:"risk_flag"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	Version               int               `json:"version"`
	CreatedAt             string            `json:"created_at"`
	UpdatedAt             string            `json:"updated_at"`
	AnalyzedAt            string            `json:"analyzed_at,omitempty"`
}

// AnalysisResultResponse is one entry of a batch analysis
type AnalysisResultResponse struct {
	DocumentID string            `json:"document_id"`
	Document   *DocumentResponse `json:"document,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// AnalysisAcceptedResponse is returned when analysis was queued
type AnalysisAcceptedResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// CreateAlertRequest represents a request to register an alert
type CreateAlertRequest struct {
	Severity         string `json:"severity" binding:"required"`
	Title            string `json:"title"`
	Description      string `json:"description" binding:"required"`
	SourceDocumentID string `json:"source_document_id,omitempty"`
}

// AlertResponse represents an alert in API responses
type AlertResponse struct {
	ID               string `json:"id"`
	Severity         string `json:"severity"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description"`
	SourceDocumentID string `json:"source_document_id,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// PortfolioEntryResponse represents a loan in the portfolio view
type PortfolioEntryResponse struct {
	ID                    string `json:"id"`
	BorrowerName          string `json:"borrower_name"`
	FacilityAmount        *int64 `json:"facility_amount,omitempty"` // Stored in cents/minor units
	FacilityAmountDisplay string `json:"facility_amount_display,omitempty"`
	RiskFlag              string `json:"risk_flag"`
	Source                string `json:"source"`
}

// MetricsResponse represents the dashboard metrics
type MetricsResponse struct {
	ActiveLoanCount      int            `json:"active_loan_count"`
	TotalExposure        int64          `json:"total_exposure"` // Stored in cents/minor units
	TotalExposureDisplay string         `json:"total_exposure_display"`
	ComplianceScore      int            `json:"compliance_score"`
	CriticalIssueCount   int            `json:"critical_issue_count"`
	PendingApprovalCount int            `json:"pending_approval_count"`
	RiskDistribution     map[string]int `json:"risk_distribution"`
	StatusDistribution   map[string]int `json:"status_distribution"`
	ComputedAt           string         `json:"computed_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=50" binding:"min=1,max=200"`
}

func amountFields(a *currency.Amount) (*int64, string) {
	if a == nil {
		return nil, ""
	}
	cents := int64(*a)
	return &cents, currency.Format(*a)
}

func mapDocumentToResponse(rec *document.Record) DocumentResponse {
	amount, display := amountFields(rec.FacilityAmount)
	resp := DocumentResponse{
		ID:                    rec.ID.String(),
		Filename:              rec.Filename,
		ContentType:           rec.ContentType,
		SizeBytes:             rec.SizeBytes,
		Status:                string(rec.Status),
		ExtractedEntities:     rec.ExtractedEntities,
		FacilityAmount:        amount,
		FacilityAmountDisplay: display,
		RiskFlag:              string(rec.RiskFlag),
		FailureReason:         rec.FailureReason,
		Version:               rec.Version,
		CreatedAt:             rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.AnalyzedAt != nil {
		resp.AnalyzedAt = rec.AnalyzedAt.Format(time.RFC3339)
	}
	return resp
}

func mapAnalysisResults(results []intake.AnalysisResult) []AnalysisResultResponse {
	out := make([]AnalysisResultResponse, 0, len(results))
	for _, res := range results {
		item := AnalysisResultResponse{DocumentID: res.DocumentID.String()}
		if res.Record != nil {
			doc := mapDocumentToResponse(res.Record)
			item.Document = &doc
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func mapAlertToResponse(a *alert.Alert) AlertResponse {
	return AlertResponse{
		ID:               a.ID.String(),
		Severity:         string(a.Severity),
		Title:            a.Title,
		Description:      a.Description,
		SourceDocumentID: a.SourceDocumentID,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

func mapPortfolioEntry(e portfolio.Entry) PortfolioEntryResponse {
	amount, display := amountFields(e.FacilityAmount)
	return PortfolioEntryResponse{
		ID:                    e.ID,
		BorrowerName:          e.BorrowerName,
		FacilityAmount:        amount,
		FacilityAmountDisplay: display,
		RiskFlag:              string(e.RiskFlag),
		Source:                string(e.Source),
	}
}

func mapMetrics(m aggregation.Metrics) MetricsResponse {
	resp := MetricsResponse{
		ActiveLoanCount:      m.ActiveLoanCount,
		TotalExposure:        int64(m.TotalExposure),
		TotalExposureDisplay: m.TotalExposureDisplay,
		ComplianceScore:      m.ComplianceScore,
		CriticalIssueCount:   m.CriticalIssueCount,
		PendingApprovalCount: m.PendingApprovalCount,
		RiskDistribution:     make(map[string]int, len(m.RiskDistribution)),
		StatusDistribution:   make(map[string]int, len(m.StatusDistribution)),
		ComputedAt:           m.ComputedAt.Format(time.RFC3339),
	}
	for k, v := range m.RiskDistribution {
		resp.RiskDistribution[string(k)] = v
	}
	for k, v := range m.StatusDistribution {
		resp.StatusDistribution[string(k)] = v
	}
	return resp
}
