package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

// MockStorage is an in-memory implementation of Storage for testing and
// for running without a backing store.
type MockStorage struct {
	mu          sync.RWMutex
	campaigns   map[uuid.UUID]*campaign.Campaign
	turns       map[uuid.UUID][]chat.TurnRecord
	pingError   error
	saveError   error
	appendError error
	loadError   error

	SaveCalls   int
	AppendCalls int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		campaigns: make(map[uuid.UUID]*campaign.Campaign),
		turns:     make(map[uuid.UUID][]chat.TurnRecord),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes snapshot writes fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetAppendError makes turn appends fail with err.
func (m *MockStorage) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendError = err
}

// SetLoadError makes snapshot and turn reads fail with err.
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func clone(c *campaign.Campaign) (*campaign.Campaign, error) {
	data, err := marshalCampaign(c)
	if err != nil {
		return nil, err
	}
	return unmarshalCampaign(data)
}

func (m *MockStorage) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	if c == nil {
		return errors.New("campaign cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.saveError != nil {
		return m.saveError
	}
	cp, err := clone(c)
	if err != nil {
		return err
	}
	if existing, ok := m.campaigns[c.ID]; ok && !existing.CreatedAt.IsZero() {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	m.campaigns[c.ID] = cp
	return nil
}

func (m *MockStorage) LoadCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	c, ok := m.campaigns[id]
	if !ok {
		return nil, nil // Return nil for not found
	}
	return clone(c)
}

func (m *MockStorage) ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*campaign.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		cp, err := clone(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MockStorage) UpdateStorySummary(ctx context.Context, id uuid.UUID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	c, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign not found: %s", id)
	}
	c.StorySummary = summary
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStorage) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
	delete(m.turns, id)
	return nil
}

func (m *MockStorage) AppendTurn(ctx context.Context, id uuid.UUID, turn chat.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.appendError != nil {
		return m.appendError
	}
	m.turns[id] = append(m.turns[id], turn)
	return nil
}

func (m *MockStorage) ListTurns(ctx context.Context, id uuid.UUID) ([]chat.TurnRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	out := append([]chat.TurnRecord{}, m.turns[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAtMs < out[j].CreatedAtMs })
	return out, nil
}

