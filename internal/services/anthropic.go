package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// generationSettings tunes a call for the kind of reply a purpose expects.
type generationSettings struct {
	Temperature float64
	MaxTokens   int
	// Prefill seeds the assistant turn; the reply continues from it.
	Prefill string
}

var purposeSettings = map[prompts.Purpose]generationSettings{
	prompts.PurposeTurn:       {Temperature: 0.7, MaxTokens: 1024},
	prompts.PurposeSummary:    {Temperature: 0.2, MaxTokens: 512},
	prompts.PurposeStarterKit: {Temperature: 0.2, MaxTokens: 1024, Prefill: "{"},
}

func settingsFor(p prompts.Purpose) generationSettings {
	if s, ok := purposeSettings[p]; ok {
		return s
	}
	return purposeSettings[prompts.PurposeTurn]
}

// AnthropicService implements NarrativeService on the Anthropic Messages API.
type AnthropicService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ NarrativeService = (*AnthropicService)(nil)

type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []chat.ChatMessage `json:"messages"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// APIError is a failure reported by the Anthropic API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("anthropic: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// Temporary reports whether the failure is load related (rate limit,
// overload or a server fault) rather than a bad request.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == 529 ||
		e.StatusCode >= http.StatusInternalServerError ||
		e.Type == "overloaded_error"
}

func NewAnthropicService(apiKey string, modelName string, timeout time.Duration, logger *slog.Logger) *AnthropicService {
	if timeout <= 0 {
		timeout = DefaultNarrativeTimeout
	}
	return &AnthropicService{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    anthropicBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithBaseURL points the client at another endpoint, used by tests.
func (a *AnthropicService) WithBaseURL(baseURL string) *AnthropicService {
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

// Generate sends one narrative request. Failures are returned as is; the
// caller aborts the turn.
func (a *AnthropicService) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("narrative request cannot be nil")
	}
	body, settings, err := a.buildRequest(req)
	if err != nil {
		return "", err
	}

	text, err := a.send(ctx, body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			a.logger.Warn("Anthropic call failed",
				"purpose", req.Purpose,
				"status", apiErr.StatusCode,
				"temporary", apiErr.Temporary())
		}
		return "", fmt.Errorf("narrative %s: %w", req.Purpose, err)
	}
	return settings.Prefill + text, nil
}

func (a *AnthropicService) buildRequest(req *prompts.Request) ([]byte, generationSettings, error) {
	settings := settingsFor(req.Purpose)
	msgs, err := req.Messages()
	if err != nil {
		return nil, settings, err
	}
	system, turns := alternateTurns(msgs, settings.Prefill)

	body, err := json.Marshal(messagesRequest{
		Model:       a.modelName,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		System:      system,
		Messages:    turns,
	})
	if err != nil {
		return nil, settings, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, settings, nil
}

// alternateTurns pulls system messages into one prompt and merges
// consecutive same-role turns. The Messages API requires roles to alternate
// starting with user.
func alternateTurns(msgs []chat.ChatMessage, prefill string) (string, []chat.ChatMessage) {
	var system []string
	turns := make([]chat.ChatMessage, 0, len(msgs)+1)
	for _, m := range msgs {
		if m.Role == chat.ChatRoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[0].Role != chat.ChatRoleUser {
		turns = append([]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Begin."}}, turns...)
	}
	if prefill != "" {
		turns = append(turns, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: prefill})
	}
	return strings.Join(system, "\n\n"), turns
}

func (a *AnthropicService) send(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed messagesResponse
	jsonErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if jsonErr == nil && parsed.Error != nil {
			apiErr.Type = parsed.Error.Type
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}
	if jsonErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", jsonErr)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyReply
	}

	a.logger.Debug("Anthropic reply received",
		"model", parsed.Model,
		"stop_reason", parsed.StopReason,
		"input_tokens", parsed.Usage.InputTokens,
		"output_tokens", parsed.Usage.OutputTokens)
	return sb.String(), nil
}
