package prompts

import (
	"strings"
	"testing"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

func TestGameMasterSystemPrompt_DescribesReplyContract(t *testing.T) {
	for _, want := range []string{"need_roll", "inventory_proposal", "NARRATIVE:", "Do Anything"} {
		if !strings.Contains(GameMasterSystemPrompt, want) {
			t.Errorf("Expected system prompt to mention %q", want)
		}
	}
}

func TestOOCOnlyInput(t *testing.T) {
	got := OOCOnlyInput("Can I see the exits?")
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "Respond ONLY with the first-line OOC JSON." {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if lines[2] != "Use this OOC prompt text: Can I see the exits?" {
		t.Errorf("Unexpected prompt line %q", lines[2])
	}
	if lines[3] != "Do NOT include NARRATIVE." {
		t.Errorf("Unexpected last line %q", lines[3])
	}
}

func TestLootRequestInput(t *testing.T) {
	got := LootRequestInput()
	if !strings.HasPrefix(got, "Propose EXACTLY 1 item using inventory_proposal.add.") {
		t.Errorf("Unexpected loot request %q", got)
	}
	if !strings.Contains(got, "Stealth") {
		t.Error("Expected allowed traits in loot request")
	}
}

func TestResolveInput(t *testing.T) {
	if ResolveInput(false) == ResolveInput(true) {
		t.Error("Expected reroll resolution to be distinguishable")
	}
	if ResolveInput(true) != "Resolve the action (after luck reroll)." {
		t.Errorf("Unexpected reroll wording %q", ResolveInput(true))
	}
}

func TestScribePrompt(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		lines    []chat.Line
		contains []string
		excludes []string
	}{
		{
			name:     "first summary",
			lines:    []chat.Line{{Role: chat.RolePlayer, Text: "I open the door"}},
			contains: []string{"campaign scribe", "120–200 words", "Existing summary (may be empty):\n(none)", "- player: I open the door"},
		},
		{
			name:     "rolling summary",
			existing: "Vex reached the docks.",
			lines: []chat.Line{
				{Role: chat.RoleNarration, Text: "Rain falls."},
				{Role: chat.RoleOOC, Text: "Roll Stealth"},
			},
			contains: []string{"Existing summary (may be empty):\nVex reached the docks.", "- narration: Rain falls.", "- ooc: Roll Stealth"},
			excludes: []string{"(none)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScribePrompt(tt.existing, tt.lines)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Expected %q in prompt:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Did not expect %q in prompt", unwanted)
				}
			}
		})
	}
}

func TestStarterKitPrompt(t *testing.T) {
	got := StarterKitPrompt(campaign.Card{Title: "Neon Rain", PCName: "Vex"})
	if !strings.HasPrefix(got, "Return STRICT JSON only.") {
		t.Errorf("Unexpected prefix: %q", got)
	}
	if !strings.Contains(got, `"title":"Neon Rain"`) {
		t.Error("Expected card JSON in prompt")
	}
	if !strings.Contains(got, "EXACTLY 3 starter skills") {
		t.Error("Expected kit size in prompt")
	}
}
