package services

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

	"github.com/jwebster45206/tabletop-session/pkg/prompts"
)

// DefaultNarrativeTimeout bounds a single narrative request.
const DefaultNarrativeTimeout = 60 * time.Second

// NarrativeService turns a request into raw reply text: a first-line OOC
// directive followed by narrative, or plain text for bookkeeping purposes.
type NarrativeService interface {
	Generate(ctx context.Context, req *prompts.Request) (string, error)
}

// HTTPNarrativeService posts the request JSON to a narrative endpoint and
// reads back {"text": "..."}.
type HTTPNarrativeService struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ NarrativeService = (*HTTPNarrativeService)(nil)

type narrativeEnvelope struct {
	Purpose prompts.Purpose `json:"purpose"`
	*prompts.Request
}

type narrativeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func NewHTTPNarrativeService(url string, timeout time.Duration, logger *slog.Logger) *HTTPNarrativeService {
	if timeout <= 0 {
		timeout = DefaultNarrativeTimeout
	}
	return &HTTPNarrativeService{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (h *HTTPNarrativeService) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("narrative request cannot be nil")
	}
	body, err := json.Marshal(narrativeEnvelope{Purpose: req.Purpose, Request: req})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("narrative request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out narrativeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("narrative error: %s", out.Error)
	}

	h.logger.Debug("Narrative reply received",
		"purpose", req.Purpose,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(out.Text))
	return out.Text, nil
}
