package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/lma-docpulse/internal/platform/storage"
)

const (
	maxDocumentBytes = 8 << 20
	minTextLength    = 100
)

type riskLevel int

const (
	levelNone riskLevel = iota
	levelLow
	levelMedium
	levelHigh
	levelCritical
)

func (l riskLevel) flag() string {
	switch l {
	case levelCritical, levelHigh:
		return "CRITICAL"
	case levelMedium:
		return "MEDIUM"
	case levelLow:
		return "LOW"
	}
	return "NONE"
}

var defaultEvents = []struct {
	pattern *regexp.Regexp
	name    string
	level   riskLevel
}{
	{regexp.MustCompile(`(?i)non[- ]?payment`), "Non-payment", levelCritical},
	{regexp.MustCompile(`(?i)breach\s+(of\s+)?(other\s+)?obligations?`), "Breach of obligations", levelMedium},
	{regexp.MustCompile(`(?i)misrepresentation`), "Misrepresentation", levelHigh},
	{regexp.MustCompile(`(?i)insolvency|bankruptcy`), "Insolvency", levelCritical},
	{regexp.MustCompile(`(?i)cross[- ]?default`), "Cross-default", levelHigh},
	{regexp.MustCompile(`(?i)material\s+adverse\s+change`), "Material Adverse Change", levelHigh},
	{regexp.MustCompile(`(?i)unlawfulness|illegality`), "Unlawfulness", levelMedium},
	{regexp.MustCompile(`(?i)repudiation`), "Repudiation", levelCritical},
	{regexp.MustCompile(`(?i)cessation\s+of\s+business`), "Cessation of Business", levelCritical},
	{regexp.MustCompile(`(?i)audit\s+qualification`), "Audit Qualification", levelMedium},
}

var entityPatterns = []struct {
	key     string
	pattern *regexp.Regexp
}{
	{"borrower", regexp.MustCompile(`(?im)^\W*(?:the\s+)?borrower\s*[:\-]\s*(.+)$`)},
	{"lender", regexp.MustCompile(`(?im)^\W*(?:the\s+)?(?:lender|agent)\s*[:\-]\s*(.+)$`)},
	{"maturity_date", regexp.MustCompile(`(?i)(?:maturity|termination)\s+date\s*[:\-]?\s*(\d{1,2}[\s/\-]\w+[\s/\-]\d{2,4})`)},
	{"effective_date", regexp.MustCompile(`(?i)(?:effective|commencement)\s+date\s*[:\-]?\s*(\d{1,2}[\s/\-]\w+[\s/\-]\d{2,4})`)},
	{"leverage_ratio", regexp.MustCompile(`(?i)leverage\s+ratio[\s:]+([0-9.]+x?)`)},
	{"interest_cover", regexp.MustCompile(`(?i)interest\s+cover(?:age)?[\s:]+([0-9.]+x?)`)},
	{"governing_law", regexp.MustCompile(`(?i)governing\s+law\s*[:\-]\s*([A-Za-z ]+)`)},
}

var amountPattern = regexp.MustCompile(`(?i)(?:facility|loan|commitment|principal)\s+amount\s*(?:of|:|-)?\s*(\$?\s?[0-9][0-9,]*(?:\.[0-9]+)?[ \t]?[KMB]?)\b`)

// PatternExtractor finds facts in the stored document text with rule-based patterns
type PatternExtractor struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func NewPatternExtractor(logger *slog.Logger, store storage.ObjectStore) *PatternExtractor {
	return &PatternExtractor{store: store, logger: logger}
}

var _ Extractor = (*PatternExtractor)(nil)

// Extract reads the stored bytes and analyzes them as text
func (p *PatternExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	rc, err := p.store.Get(ctx, ref.ObjectKey)
	if err != nil {
		return nil, fail(ref.DocumentID, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes))
	if err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to read document: %w", err))
	}

	result := Analyze(printableText(raw))
	p.logger.Debug("Pattern extraction finished",
		"document_id", ref.DocumentID.String(),
		"entities", len(result.Entities),
		"findings", len(result.Findings),
		"risk", result.RiskFlag,
	)
	return result, nil
}

// Analyze runs every pattern over text
func Analyze(text string) *Result {
	if len(strings.TrimSpace(text)) < minTextLength {
		return &Result{
			Entities: map[string]string{},
			RiskFlag: "NONE",
			Content:  text,
			Findings: []string{"Unable to extract text from document"},
		}
	}

	entities := make(map[string]string)
	for _, ep := range entityPatterns {
		if m := ep.pattern.FindStringSubmatch(text); m != nil {
			if v := cleanValue(m[1]); v != "" {
				entities[ep.key] = v
			}
		}
	}

	level := levelNone
	var events []string
	for _, ev := range defaultEvents {
		if ev.pattern.MatchString(text) {
			events = append(events, ev.name)
			if ev.level > level {
				level = ev.level
			}
		}
	}
	if len(events) > 0 {
		entities["events_of_default"] = strings.Join(events, ", ")
	}

	findings := complianceFindings(text)
	if level == levelNone && len(findings) > 0 {
		level = levelLow
	}

	var amount string
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		amount = strings.TrimSpace(m[1])
	}

	return &Result{
		Entities:       entities,
		FacilityAmount: amount,
		RiskFlag:       level.flag(),
		Content:        text,
		Findings:       findings,
	}
}

func complianceFindings(text string) []string {
	lower := strings.ToLower(text)
	var flags []string
	if strings.Contains(lower, "libor") && !strings.Contains(lower, "sofr") {
		flags = append(flags, "LIBOR reference without SOFR fallback")
	}
	if strings.Contains(lower, "unlimited") && strings.Contains(lower, "liability") {
		flags = append(flags, "Unlimited liability clause detected")
	}
	if strings.Contains(lower, "waiver") && strings.Contains(lower, "right") {
		flags = append(flags, "Rights waiver clause detected")
	}
	if !strings.Contains(lower, "governing law") {
		flags = append(flags, "Missing governing law clause")
	}
	if !strings.Contains(lower, "jurisdiction") {
		flags = append(flags, "Missing jurisdiction clause")
	}
	return flags
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",.;")
	if len(s) > 100 {
		return ""
	}
	return s
}

// printableText drops control and non-text bytes so binary uploads do not derail matching
func printableText(raw []byte) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		if r == '\r' {
			return '\n'
		}
		return -1
	}, string(raw))
}
