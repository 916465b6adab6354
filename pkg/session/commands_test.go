package session

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		ok       bool
		expected command
	}{
		{input: "*addluck*", ok: true, expected: command{name: "addluck"}},
		{input: "*AddWound*", ok: true, expected: command{name: "addwound"}},
		{input: "*addxp 3*", ok: true, expected: command{name: "addxp", amount: 3, hasAmt: true}},
		{input: "*addxp -2*", ok: true, expected: command{name: "addxp", amount: -2, hasAmt: true}},
		{input: "*addstatus Bleeding badly*", ok: true, expected: command{name: "addstatus", arg: "Bleeding badly"}},
		{input: "*RemoveStatus bleeding*", ok: true, expected: command{name: "removestatus", arg: "bleeding"}},
		{input: "*ooc- is the door locked?*", ok: true, expected: command{name: "ooc", arg: "is the door locked?"}},
		{input: "*OOC-what time is it*", ok: true, expected: command{name: "ooc", arg: "what time is it"}},
		{input: "*wave at the guard*", ok: false},
		{input: "I shout *hey*", ok: false},
		{input: "*addxp three*", ok: false},
		{input: "plain text", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCommand(tt.input)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestNarrativeCommand(t *testing.T) {
	for _, name := range []string{"ooc", "promptadditem"} {
		if !narrativeCommand(name) {
			t.Errorf("Expected %q to call the narrator", name)
		}
	}
	for _, name := range []string{"addluck", "summary", "togglerolling", "buyluck"} {
		if narrativeCommand(name) {
			t.Errorf("Expected %q to be local", name)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Config{})
	id := uuid.New()

	if _, ok := r.Lookup(id); ok {
		t.Fatal("Expected empty registry")
	}
	o := r.Get(id)
	if o.ID() != id {
		t.Errorf("Expected orchestrator for %s, got %s", id, o.ID())
	}
	if r.Get(id) != o {
		t.Error("Expected Get to return the same orchestrator")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Len())
	}

	r.Remove(id)
	if _, ok := r.Lookup(id); ok {
		t.Error("Expected session to be removed")
	}
}
