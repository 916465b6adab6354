package chat

import (
	"testing"
	"time"
)

func TestClock_Monotonic(t *testing.T) {
	fixed := time.UnixMilli(1000)
	c := NewClockFunc(func() time.Time { return fixed })

	a, b, d := c.Next(), c.Next(), c.Next()
	if a != 1000 || b != 1001 || d != 1002 {
		t.Errorf("expected 1000,1001,1002 got %d,%d,%d", a, b, d)
	}

	c.Observe(5000)
	if got := c.Next(); got != 5001 {
		t.Errorf("expected clock to move past observed timestamp, got %d", got)
	}
}

func TestNarrativeWindow(t *testing.T) {
	turns := []TurnRecord{
		{Role: RolePlayer, Text: "p1"},
		{Role: RoleNarration, Text: "n1"},
		{Role: RoleSystem, Text: "s1"},
		{Role: RoleRoll, Text: "r1"},
		{Role: RoleOOC, Text: "o1"},
		{Role: RolePlayer, Text: "p2"},
	}

	tests := []struct {
		name     string
		n        int
		expected []string
	}{
		{"window of 3", 3, []string{"o1", "p2"}},
		{"whole log", 10, []string{"p1", "n1", "o1", "p2"}},
		{"unbounded", 0, []string{"p1", "n1", "o1", "p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NarrativeWindow(turns, tt.n)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d lines, want %d", len(got), len(tt.expected))
			}
			for i, l := range got {
				if l.Text != tt.expected[i] {
					t.Errorf("line %d = %q, want %q", i, l.Text, tt.expected[i])
				}
			}
		})
	}
}

func TestNewTurnAndTranscript(t *testing.T) {
	c := NewClockFunc(func() time.Time { return time.UnixMilli(42) })
	tr := NewTurn(c, RoleSystem, "hello", nil)
	if tr.ID == "" || tr.CreatedAtMs != 42 || tr.Role != RoleSystem {
		t.Errorf("unexpected turn %+v", tr)
	}

	out := Transcript([]Line{{Role: RolePlayer, Text: "hi"}, {Role: RoleNarration, Text: "ok"}})
	if out != "player: hi\nnarration: ok\n" {
		t.Errorf("Transcript = %q", out)
	}
}
