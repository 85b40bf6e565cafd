// Package portfolio derives the loan portfolio view from seeded loans and analyzed documents.
package portfolio

import (
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
)

// Source tells where a portfolio entry came from
type Source string

const (
	SourceSeed     Source = "SEED"
	SourceDocument Source = "DOCUMENT"
)

// Entry is a read-only loan view; it is recomputed, never mutated
type Entry struct {
	ID             string            `json:"id"`
	BorrowerName   string            `json:"borrower_name"`
	FacilityAmount *currency.Amount  `json:"facility_amount,omitempty"` // Stored in cents/minor units
	RiskFlag       document.RiskFlag `json:"risk_flag"`
	Source         Source            `json:"source"`
}

// Contributes reports whether a document is part of the active portfolio:
// uploads still in transfer and failed documents are excluded
func Contributes(rec *document.Record) bool {
	return rec.Status != document.StatusUploading && rec.Status != document.StatusError
}

// FromDocument derives an entry from a document record
func FromDocument(rec *document.Record) Entry {
	e := Entry{
		ID:           rec.ID.String(),
		BorrowerName: rec.BorrowerName(),
		RiskFlag:     rec.RiskFlag,
		Source:       SourceDocument,
	}
	if e.RiskFlag == "" {
		e.RiskFlag = document.RiskNone
	}
	if rec.FacilityAmount != nil {
		amount := *rec.FacilityAmount
		e.FacilityAmount = &amount
	}
	return e
}

// Build returns seeds followed by the contributing documents in store order
func Build(seeds []Entry, records []*document.Record) []Entry {
	entries := make([]Entry, 0, len(seeds)+len(records))
	entries = append(entries, seeds...)
	for _, rec := range records {
		if Contributes(rec) {
			entries = append(entries, FromDocument(rec))
		}
	}
	return entries
}

func seedAmount(s string) *currency.Amount {
	a := currency.MustParse(s)
	return &a
}

// SeedEntries returns the six loans the dashboard starts with
func SeedEntries() []Entry {
	return []Entry{
		{ID: "LN-884-X", BorrowerName: "Omega Holdings", FacilityAmount: seedAmount("$12.5M"), RiskFlag: document.RiskCritical, Source: SourceSeed},
		{ID: "LN-901-A", BorrowerName: "Vertex Global", FacilityAmount: seedAmount("$4.2M"), RiskFlag: document.RiskMedium, Source: SourceSeed},
		{ID: "LN-2024-112", BorrowerName: "Epsilon Energy", FacilityAmount: seedAmount("$25.0M"), RiskFlag: document.RiskMedium, Source: SourceSeed},
		{ID: "LN-2024-005", BorrowerName: "Zeta Tech", FacilityAmount: seedAmount("$3.2M"), RiskFlag: document.RiskLow, Source: SourceSeed},
		{ID: "LN-2023-902", BorrowerName: "Beta Holdings", FacilityAmount: seedAmount("$12.25M"), RiskFlag: document.RiskMedium, Source: SourceSeed},
		{ID: "LN-2023-755", BorrowerName: "Gamma Industries", FacilityAmount: seedAmount("$1.1M"), RiskFlag: document.RiskLow, Source: SourceSeed},
	}
}

// SeedAlerts returns the alerts the dashboard starts with. Ids are left empty so the
// registry assigns them.
func SeedAlerts() []*alert.Alert {
	return []*alert.Alert{
		{Severity: alert.SeverityCritical, Title: "LIBOR Clause Missing", Description: "Loan #8839 • Syndicated Term"},
		{Severity: alert.SeverityWarning, Title: "Doc Incomplete", Description: "Loan #4402 • Acme Corp"},
		{Severity: alert.SeverityInfo, Title: "AI Suggestion", Description: "Optimization for Loan #9921"},
	}
}
