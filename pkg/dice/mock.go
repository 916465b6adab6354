package dice

import (
	"fmt"
	"sync"
)

// MockRoller returns predetermined faces, in order.
type MockRoller struct {
	mu        sync.Mutex
	rolls     []int
	rollIndex int
}

var _ Roller = (*MockRoller)(nil)

func NewMockRoller(rolls ...int) *MockRoller {
	return &MockRoller{rolls: rolls}
}

// SetRolls replaces the scripted faces and rewinds.
func (m *MockRoller) SetRolls(rolls ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = rolls
	m.rollIndex = 0
}

// Remaining returns how many scripted faces are left.
func (m *MockRoller) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rolls) - m.rollIndex
}

func (m *MockRoller) D6() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rollIndex >= len(m.rolls) {
		return 0, fmt.Errorf("no more predetermined rolls available (used %d of %d)", m.rollIndex, len(m.rolls))
	}
	r := m.rolls[m.rollIndex]
	m.rollIndex++
	return r, nil
}
