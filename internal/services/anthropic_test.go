package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
)

func newTestAnthropic(url string) *AnthropicService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnthropicService("test-key", "claude-test", time.Second, log).WithBaseURL(url + "/")
}

func TestNewAnthropicService(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("k", "claude-test", 0, log)

	if service.baseURL != anthropicBaseURL {
		t.Errorf("Expected base URL %s, got %s", anthropicBaseURL, service.baseURL)
	}
	if service.httpClient.Timeout != DefaultNarrativeTimeout {
		t.Errorf("Expected default timeout, got %v", service.httpClient.Timeout)
	}
}

func TestAlternateTurns(t *testing.T) {
	tests := []struct {
		name       string
		messages   []chat.ChatMessage
		prefill    string
		wantSystem string
		wantRoles  []string
		wantFirst  string
	}{
		{
			name: "system pulled out",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "You are the game master."},
				{Role: chat.ChatRoleUser, Content: "{}"},
			},
			wantSystem: "You are the game master.",
			wantRoles:  []string{chat.ChatRoleUser},
			wantFirst:  "{}",
		},
		{
			name: "consecutive roles merged",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "A."},
				{Role: chat.ChatRoleUser, Content: "one"},
				{Role: chat.ChatRoleUser, Content: "two"},
				{Role: chat.ChatRoleSystem, Content: "B."},
				{Role: chat.ChatRoleAgent, Content: "reply"},
			},
			wantSystem: "A.\n\nB.",
			wantRoles:  []string{chat.ChatRoleUser, chat.ChatRoleAgent},
			wantFirst:  "one\n\ntwo",
		},
		{
			name:      "leading assistant gets a user turn",
			messages:  []chat.ChatMessage{{Role: chat.ChatRoleAgent, Content: "hi"}},
			wantRoles: []string{chat.ChatRoleUser, chat.ChatRoleAgent},
			wantFirst: "Begin.",
		},
		{
			name:      "prefill appended",
			messages:  []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "kit"}},
			prefill:   "{",
			wantRoles: []string{chat.ChatRoleUser, chat.ChatRoleAgent},
			wantFirst: "kit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, turns := alternateTurns(tt.messages, tt.prefill)
			if system != tt.wantSystem {
				t.Errorf("Expected system %q, got %q", tt.wantSystem, system)
			}
			if len(turns) != len(tt.wantRoles) {
				t.Fatalf("Expected %d turns, got %+v", len(tt.wantRoles), turns)
			}
			for i, role := range tt.wantRoles {
				if turns[i].Role != role {
					t.Errorf("Turn %d: expected role %s, got %s", i, role, turns[i].Role)
				}
			}
			if turns[0].Content != tt.wantFirst {
				t.Errorf("Expected first turn %q, got %q", tt.wantFirst, turns[0].Content)
			}
		})
	}
}

func TestAnthropicService_Generate(t *testing.T) {
	var got messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Error("Expected auth and version headers")
		}
		got = messagesRequest{}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"claude-test","stop_reason":"end_turn",
			"content":[{"type":"text","text":"{\"ooc\":{}}"},{"type":"text","text":"\n\nNARRATIVE: Go."}]}`))
	}))
	defer server.Close()
	service := newTestAnthropic(server.URL)

	text, err := service.Generate(context.Background(), &prompts.Request{Purpose: prompts.PurposeTurn, PlayerInput: "look"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "{\"ooc\":{}}\n\nNARRATIVE: Go." {
		t.Errorf("Expected joined text blocks, got %q", text)
	}
	if got.System != prompts.GameMasterSystemPrompt {
		t.Error("Expected game master system prompt")
	}
	if len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, `"player_input":"look"`) {
		t.Errorf("Expected request JSON as the only user turn, got %+v", got.Messages)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 1024 {
		t.Errorf("Expected turn settings, got temperature %v max_tokens %d", got.Temperature, got.MaxTokens)
	}

	if _, err := service.Generate(context.Background(), &prompts.Request{Purpose: prompts.PurposeSummary}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.System != prompts.UtilitySystemPrompt || got.Temperature != 0.2 || got.MaxTokens != 512 {
		t.Errorf("Expected summary settings, got %+v", got)
	}
}

func TestAnthropicService_StarterKitPrefill(t *testing.T) {
	var got messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"\"items\":[]}"}]}`))
	}))
	defer server.Close()

	text, err := newTestAnthropic(server.URL).Generate(context.Background(), &prompts.Request{Purpose: prompts.PurposeStarterKit})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != `{"items":[]}` {
		t.Errorf("Expected prefill joined to reply, got %q", text)
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != chat.ChatRoleAgent || last.Content != "{" {
		t.Errorf("Expected assistant prefill turn, got %+v", last)
	}
}

func TestAnthropicService_OverloadedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	text, err := newTestAnthropic(server.URL).Generate(context.Background(), &prompts.Request{})
	if err == nil {
		t.Fatalf("Expected overloaded error, got reply %q", text)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 529 || !apiErr.Temporary() {
		t.Errorf("Expected temporary 529 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly one call, got %d", calls.Load())
	}
}

func TestAnthropicService_GenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantCalls int32
		wantAPI   bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"type":"rate_limit_error","message":"slow down"}}`, wantErr: "status 429 (rate_limit_error): slow down", wantCalls: 1, wantAPI: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"type":"invalid_request_error","message":"bad"}}`, wantErr: "status 400", wantCalls: 1, wantAPI: true},
		{name: "non-json error", status: http.StatusBadGateway, body: "gateway down", wantErr: "gateway down", wantCalls: 1, wantAPI: true},
		{name: "empty content", status: http.StatusOK, body: `{"content":[]}`, wantErr: "empty reply", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestAnthropic(server.URL).Generate(context.Background(), &prompts.Request{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) != tt.wantAPI {
				t.Errorf("errors.As APIError = %v, want %v", !tt.wantAPI, tt.wantAPI)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls.Load())
			}
		})
	}

	if _, err := newTestAnthropic("http://unused").Generate(context.Background(), nil); err == nil {
		t.Error("Expected error for nil request")
	}
}
