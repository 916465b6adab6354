package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role of a persisted turn record.
type Role string

const (
	RolePlayer    Role = "player"    // player input
	RoleOOC       Role = "ooc"       // narrator out-of-character line
	RoleNarration Role = "narration" // narrator prose
	RoleSystem    Role = "system"    // local notices
	RoleRoll      Role = "roll"      // dice outcomes
)

// TurnRecord is one entry of the append-only transcript.
type TurnRecord struct {
	ID          string         `json:"id"`
	Role        Role           `json:"role"`
	Text        string         `json:"text"`
	Extras      map[string]any `json:"extras,omitempty"`
	CreatedAtMs int64          `json:"createdAtMs"`
}

// NewTurn builds a record stamped by clock.
func NewTurn(clock *Clock, role Role, text string, extras map[string]any) TurnRecord {
	return TurnRecord{
		ID:          uuid.NewString(),
		Role:        role,
		Text:        text,
		Extras:      extras,
		CreatedAtMs: clock.Next(),
	}
}

// Line is a transcript entry as shown to the narrative service.
type Line struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NarrativeWindow takes the last n records and keeps only player, OOC and
// narration lines, oldest first.
func NarrativeWindow(turns []TurnRecord, n int) []Line {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]Line, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RolePlayer, RoleOOC, RoleNarration:
			lines = append(lines, Line{Role: t.Role, Text: t.Text})
		}
	}
	return lines
}

// Transcript renders lines as "role: text" rows.
func Transcript(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(string(l.Role))
		sb.WriteString(": ")
		sb.WriteString(l.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Clock hands out strictly increasing millisecond timestamps so records
// written within the same millisecond keep their order.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFunc returns a clock driven by now, for tests.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Observe moves the clock past ts, used after loading existing history.
func (c *Clock) Observe(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.last {
		c.last = ts
	}
}

func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}
