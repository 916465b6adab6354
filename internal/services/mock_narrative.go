package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwebster45206/tabletop-session/pkg/prompts"
)

// MockNarrativeService is a mock implementation of NarrativeService for
// testing. Scripted replies are returned in order; GenerateFunc overrides them.
type MockNarrativeService struct {
	GenerateFunc func(ctx context.Context, req *prompts.Request) (string, error)

	// Track calls for testing
	GenerateCalls []*prompts.Request

	replies []string
	mu      sync.Mutex // protects all fields above
}

var _ NarrativeService = (*MockNarrativeService)(nil)

// NewMockNarrativeService creates a mock that answers with replies in order.
func NewMockNarrativeService(replies ...string) *MockNarrativeService {
	return &MockNarrativeService{
		GenerateCalls: make([]*prompts.Request, 0),
		replies:       append([]string{}, replies...),
	}
}

// Generate mocks narrative generation
func (m *MockNarrativeService) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	fn := m.GenerateFunc
	if fn == nil {
		defer m.mu.Unlock()
		if len(m.replies) == 0 {
			return "", fmt.Errorf("no scripted narrative reply (call %d)", len(m.GenerateCalls))
		}
		reply := m.replies[0]
		m.replies = m.replies[1:]
		return reply, nil
	}
	m.mu.Unlock()
	return fn(ctx, req)
}

// Enqueue appends scripted replies.
func (m *MockNarrativeService) Enqueue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// SetGenerateError sets up the mock to return an error on Generate
func (m *MockNarrativeService) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, req *prompts.Request) (string, error) {
		return "", err
	}
}

// Reset clears call tracking, scripted replies and hooks.
func (m *MockNarrativeService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([]*prompts.Request, 0)
	m.replies = nil
	m.GenerateFunc = nil
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockNarrativeService) GetCalls() []*prompts.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]*prompts.Request, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}

// Pending reports how many scripted replies are left.
func (m *MockNarrativeService) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}
