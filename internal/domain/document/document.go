package document

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/domain/currency"
)

// Common errors
var (
	ErrEmptyFilename   = errors.New("filename cannot be empty")
	ErrInvalidRiskFlag = errors.New("invalid risk flag")
)

// Record represents one ingested loan-agreement document
type Record struct {
	ID                uuid.UUID         `json:"id"`
	Filename          string            `json:"filename"`
	ContentType       string            `json:"content_type,omitempty"`
	SizeBytes         int64             `json:"size_bytes"`
	ObjectKey         string            `json:"object_key,omitempty"`
	Status            Status            `json:"status"`
	ExtractedEntities map[string]string `json:"extracted_entities,omitempty"`
	FacilityAmount    *currency.Amount  `json:"facility_amount,omitempty"` // Stored in cents/minor units
	RiskFlag          RiskFlag          `json:"risk_flag"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	Version           int               `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	AnalyzedAt        *time.Time        `json:"analyzed_at,omitempty"`
}

// Metadata describes the uploaded bytes of a document
type Metadata struct {
	ContentType string
	SizeBytes   int64
}

// Extraction holds the structured facts attached to a record after analysis
type Extraction struct {
	Entities       map[string]string
	FacilityAmount *currency.Amount
	RiskFlag       RiskFlag
}

// NewRecord creates a record in UPLOADING state
func NewRecord(filename string, meta Metadata) (*Record, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	id := uuid.New()
	now := time.Now()
	return &Record{
		ID:          id,
		Filename:    filename,
		ContentType: meta.ContentType,
		SizeBytes:   meta.SizeBytes,
		ObjectKey:   "documents/" + id.String() + "/" + filename,
		Status:      StatusUploading,
		RiskFlag:    RiskNone,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the record to status to, leaving it unchanged when the policy
// does not allow the move
func (r *Record) Transition(policy TransitionPolicy, to Status) error {
	if !policy.Allows(r.Status, to) {
		return ErrInvalidTransition{ID: r.ID, From: r.Status, To: to}
	}

	now := time.Now()
	if to == StatusAnalyzing {
		r.FailureReason = ""
	}
	if to == StatusAnalyzed && r.AnalyzedAt == nil {
		r.AnalyzedAt = &now
	}
	r.Status = to
	r.UpdatedAt = now
	r.Version++
	return nil
}

// Fail moves the record to ERROR and records why
func (r *Record) Fail(policy TransitionPolicy, reason string) error {
	if err := r.Transition(policy, StatusError); err != nil {
		return err
	}
	r.FailureReason = reason
	return nil
}

// AttachExtraction applies extraction results; legal only while ANALYZING.
// final must be ANALYZED or REVIEW.
func (r *Record) AttachExtraction(policy TransitionPolicy, ext Extraction, final Status) error {
	if r.Status != StatusAnalyzing || (final != StatusAnalyzed && final != StatusReview) {
		return ErrInvalidTransition{ID: r.ID, From: r.Status, To: final}
	}
	riskFlag := ext.RiskFlag
	if riskFlag == "" {
		riskFlag = RiskNone
	}
	if _, err := ParseRiskFlag(string(riskFlag)); err != nil {
		return ErrInvalidRiskFlag
	}
	if err := r.Transition(policy, final); err != nil {
		return err
	}

	r.ExtractedEntities = maps.Clone(ext.Entities)
	if ext.FacilityAmount != nil {
		amount := *ext.FacilityAmount
		r.FacilityAmount = &amount
	}
	r.RiskFlag = riskFlag
	return nil
}

// Clone returns a deep copy so callers can treat it as an immutable snapshot
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.ExtractedEntities = maps.Clone(r.ExtractedEntities)
	if r.FacilityAmount != nil {
		amount := *r.FacilityAmount
		c.FacilityAmount = &amount
	}
	if r.AnalyzedAt != nil {
		at := *r.AnalyzedAt
		c.AnalyzedAt = &at
	}
	return &c
}

// BorrowerName picks the borrower from extracted entities, falling back to the filename
func (r *Record) BorrowerName() string {
	for _, key := range []string{"borrower", "counterparty"} {
		if v := strings.TrimSpace(r.ExtractedEntities[key]); v != "" {
			return v
		}
	}
	return r.Filename
}
