package document

import (
	"fmt"
	"strings"
)

// Status defines document lifecycle states
type Status string

const (
	StatusUploading Status = "UPLOADING"
	StatusReady     Status = "READY"
	StatusAnalyzing Status = "ANALYZING"
	StatusAnalyzed  Status = "ANALYZED"
	StatusReview    Status = "REVIEW"
	StatusError     Status = "ERROR"
)

// Statuses lists every lifecycle state in pipeline order
var Statuses = []Status{
	StatusUploading,
	StatusReady,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusReview,
	StatusError,
}

// ParseStatus validates s against the closed set of statuses
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown document status %q", s)
}

// RiskFlag defines per-document criticality, independent of alerts
type RiskFlag string

const (
	RiskNone     RiskFlag = "NONE"
	RiskLow      RiskFlag = "LOW"
	RiskMedium   RiskFlag = "MEDIUM"
	RiskCritical RiskFlag = "CRITICAL"
)

// RiskFlags lists every risk flag from least to most severe
var RiskFlags = []RiskFlag{RiskNone, RiskLow, RiskMedium, RiskCritical}

// ParseRiskFlag validates s case-insensitively; an empty string maps to RiskNone
func ParseRiskFlag(s string) (RiskFlag, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if upper == "" {
		return RiskNone, nil
	}
	for _, rf := range RiskFlags {
		if string(rf) == upper {
			return rf, nil
		}
	}
	return "", fmt.Errorf("unknown risk flag %q", s)
}

// TransitionPolicy is the explicit table of allowed status transitions
type TransitionPolicy struct {
	// AllowErrorRetry makes ERROR re-enterable: ERROR -> ANALYZING starts a fresh analysis attempt
	AllowErrorRetry bool
}

var baseTransitions = map[Status][]Status{
	// UPLOADING -> ERROR covers a failed transfer to object storage
	StatusUploading: {StatusReady, StatusError},
	StatusReady:     {StatusAnalyzing},
	StatusAnalyzing: {StatusAnalyzed, StatusReview, StatusError},
	StatusReview:    {StatusAnalyzed},
	StatusAnalyzed:  {StatusAnalyzed},
}

// Allows reports whether from -> to is a legal transition under the policy
func (p TransitionPolicy) Allows(from, to Status) bool {
	if p.AllowErrorRetry && from == StatusError && to == StatusAnalyzing {
		return true
	}
	for _, next := range baseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s under the policy.
// REVIEW is semi-terminal and is not reported as terminal.
func (p TransitionPolicy) IsTerminal(s Status) bool {
	switch s {
	case StatusAnalyzed:
		return true
	case StatusError:
		return !p.AllowErrorRetry
	}
	return false
}
