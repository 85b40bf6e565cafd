package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/platform/storage"
)

// snippetBytes bounds how much document text is sent to the remote service
const snippetBytes = 4096

// HTTPClient calls a remote extraction service over JSON
type HTTPClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	store      storage.ObjectStore
	logger     *slog.Logger
}

type extractRequest struct {
	DocumentID     string `json:"document_id"`
	Filename       string `json:"filename"`
	ContentType    string `json:"content_type,omitempty"`
	ContentSnippet string `json:"content_snippet,omitempty"`
}

type extractResponse struct {
	Counterparty string            `json:"counterparty"`
	Amount       string            `json:"amount"`
	Type         string            `json:"type"`
	Risk         string            `json:"risk"`
	Deadline     string            `json:"deadline"`
	Entities     map[string]string `json:"entities"`
	Content      string            `json:"content"`
	Findings     []string          `json:"findings"`
}

// NewHTTPClient builds a client; store may be nil, in which case no content snippet is sent
func NewHTTPClient(logger *slog.Logger, cfg *config.ExtractionConfig, store storage.ObjectStore) *HTTPClient {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		store:   store,
		logger:  logger,
	}
}

var _ Extractor = (*HTTPClient)(nil)

// Extract posts the document reference to the service and maps the reply
func (c *HTTPClient) Extract(ctx context.Context, ref Reference) (*Result, error) {
	if c.apiKey == "" {
		return nil, fail(ref.DocumentID, ErrMissingCredential)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("rate limiter: %w", err))
	}

	reqBody := extractRequest{
		DocumentID:     ref.DocumentID.String(),
		Filename:       ref.Filename,
		ContentType:    ref.ContentType,
		ContentSnippet: c.snippet(ctx, ref),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/extract", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fail(ref.DocumentID, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fail(ref.DocumentID, fmt.Errorf("failed to parse response: %w", err))
	}

	c.logger.Debug("Extraction service replied",
		"document_id", ref.DocumentID.String(),
		"duration", time.Since(started),
	)

	entities := make(map[string]string, len(out.Entities)+3)
	for k, v := range out.Entities {
		entities[k] = v
	}
	if out.Counterparty != "" {
		entities["borrower"] = out.Counterparty
	}
	if out.Type != "" {
		entities["loan_type"] = out.Type
	}
	if out.Deadline != "" {
		entities["deadline"] = out.Deadline
	}

	return &Result{
		Entities:       entities,
		FacilityAmount: out.Amount,
		RiskFlag:       out.Risk,
		Content:        out.Content,
		Findings:       out.Findings,
	}, nil
}

// snippet reads the head of the stored document; failures only reduce context
func (c *HTTPClient) snippet(ctx context.Context, ref Reference) string {
	if c.store == nil || ref.ObjectKey == "" {
		return ""
	}
	rc, err := c.store.Get(ctx, ref.ObjectKey)
	if err != nil {
		c.logger.Warn("Could not read document for extraction snippet",
			"document_id", ref.DocumentID.String(),
			"error", err,
		)
		return ""
	}
	defer rc.Close()

	head, err := io.ReadAll(io.LimitReader(rc, snippetBytes))
	if err != nil {
		return ""
	}
	return string(head)
}
