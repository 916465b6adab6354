package prompts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
)

func testCampaign() *campaign.Campaign {
	c := campaign.New("Neon Rain", character.PC{
		Name:        "Vex",
		Description: "A burned-out netrunner",
		Luck:        1,
		Skills:      []character.Skill{{Name: "Hacking", Level: 2, Traits: []string{"tech"}}},
	})
	c.Setting = "A drowned megacity"
	c.StorySummary = "Vex owes the Tide Syndicate."
	c.Inventory = []character.Item{{Name: "Deck", Qty: 1, Matches: []string{"tech"}}}
	return c
}

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyLimit != DefaultHistoryLimit {
		t.Errorf("Expected default history limit of %d, got %d", DefaultHistoryLimit, builder.historyLimit)
	}
	if builder.req.Purpose != PurposeTurn {
		t.Errorf("Expected default purpose %q, got %q", PurposeTurn, builder.req.Purpose)
	}
}

func TestBuilder_FluentInterface(t *testing.T) {
	c := testCampaign()
	turns := []chat.TurnRecord{{ID: "1", Role: chat.RolePlayer, Text: "hi"}}

	builder := New().
		WithCampaign(c).
		WithTurns(turns).
		WithPlayerInput("Hello").
		WithHistoryLimit(4)

	if builder.campaign != c {
		t.Error("WithCampaign did not set campaign")
	}
	if len(builder.turns) != 1 {
		t.Error("WithTurns did not set turns")
	}
	if builder.req.PlayerInput != "Hello" {
		t.Error("WithPlayerInput did not set input")
	}
	if builder.historyLimit != 4 {
		t.Error("WithHistoryLimit did not set limit")
	}
}

func TestBuilder_Build_RequiresCampaign(t *testing.T) {
	_, err := New().WithPlayerInput("x").Build()
	if err == nil {
		t.Fatal("Expected error when campaign is missing")
	}
	if !strings.Contains(err.Error(), "campaign is required") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestBuilder_Build_RejectsNegativeHistory(t *testing.T) {
	_, err := New().WithCampaign(testCampaign()).WithHistoryLimit(-1).Build()
	if err == nil {
		t.Fatal("Expected error for negative history limit")
	}
}

func TestBuilder_Build_FillsCampaignContext(t *testing.T) {
	req, err := New().WithCampaign(testCampaign()).WithPlayerInput(PlayerInput("I jack in")).Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.CampaignCard.Title != "Neon Rain" || req.CampaignCard.Setting != "A drowned megacity" {
		t.Errorf("Unexpected card: %+v", req.CampaignCard)
	}
	if req.CampaignCard.PCName != "Vex" {
		t.Errorf("Expected PC name on card, got %q", req.CampaignCard.PCName)
	}
	if req.StorySummary != "Vex owes the Tide Syndicate." {
		t.Errorf("Unexpected story summary %q", req.StorySummary)
	}
	if len(req.StateSummary.Skills) != 2 {
		t.Errorf("Expected Do Anything plus Hacking, got %v", req.StateSummary.Skills)
	}
	if !strings.HasSuffix(req.PlayerInput, GroundingSuffix) {
		t.Errorf("Expected grounding suffix, got %q", req.PlayerInput)
	}
	if req.Mechanics != nil || req.Hints != nil || req.Meta != nil {
		t.Error("Expected optional sections to be omitted")
	}
}

func TestBuilder_Build_NarrativeWindow(t *testing.T) {
	turns := []chat.TurnRecord{
		{Role: chat.RolePlayer, Text: "old"},
		{Role: chat.RoleNarration, Text: "story"},
		{Role: chat.RoleSystem, Text: "+1 XP"},
		{Role: chat.RoleRoll, Text: "Rolled"},
		{Role: chat.RolePlayer, Text: "new"},
	}

	tests := []struct {
		name     string
		limit    int
		expected []string
	}{
		{name: "all records", limit: 10, expected: []string{"old", "story", "new"}},
		{name: "window then filter", limit: 3, expected: []string{"new"}},
		{name: "zero means everything", limit: 0, expected: []string{"old", "story", "new"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := New().WithCampaign(testCampaign()).WithTurns(turns).WithHistoryLimit(tt.limit).Build()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			var got []string
			for _, l := range req.RecentTurns {
				got = append(got, l.Text)
			}
			if strings.Join(got, ",") != strings.Join(tt.expected, ",") {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestBuilder_Build_Mechanics(t *testing.T) {
	outcome := &roll.Outcome{Skill: "Hacking", Level: 2, DC: 12, TierResult: rules.TierSuccess}
	req, err := New().
		WithCampaign(testCampaign()).
		WithRollResult(outcome).
		WithRules(rules.Default()).
		WithHints(true, false).
		WithSuppressNarrative().
		WithTraitVocabulary().
		Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Mechanics == nil || req.Mechanics.RollResult != outcome {
		t.Fatal("Expected roll result to be attached")
	}
	if req.Mechanics.Rules == nil || req.Mechanics.Rules.CritMargin != rules.Default().CritMargin {
		t.Error("Expected rules digest to be attached")
	}
	if req.Hints == nil || !req.Hints.WantLoot || req.Hints.OOCOnly {
		t.Errorf("Unexpected hints: %+v", req.Hints)
	}
	if !req.SuppressNarrative() {
		t.Error("Expected narrative to be suppressed")
	}
	if len(req.TraitVocabulary) == 0 {
		t.Error("Expected trait vocabulary")
	}
}

func TestRequest_Messages(t *testing.T) {
	tests := []struct {
		name   string
		build  func() *Builder
		system string
	}{
		{
			name:   "turn uses game master prompt",
			build:  func() *Builder { return New().WithKickoff().WithPlayerInput(KickoffInput) },
			system: GameMasterSystemPrompt,
		},
		{
			name:   "summary uses utility prompt",
			build:  func() *Builder { return New().WithPurpose(PurposeSummary) },
			system: UtilitySystemPrompt,
		},
		{
			name:   "starter kit uses utility prompt",
			build:  func() *Builder { return New().WithPurpose(PurposeStarterKit) },
			system: UtilitySystemPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.build().WithCampaign(testCampaign()).Build()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			msgs, err := req.Messages()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(msgs) != 2 {
				t.Fatalf("Expected 2 messages, got %d", len(msgs))
			}
			if msgs[0].Role != chat.ChatRoleSystem || msgs[0].Content != tt.system {
				t.Error("Unexpected system message")
			}
			if msgs[1].Role != chat.ChatRoleUser {
				t.Errorf("Expected user role, got %q", msgs[1].Role)
			}

			var payload map[string]any
			if err := json.Unmarshal([]byte(msgs[1].Content), &payload); err != nil {
				t.Fatalf("User message is not JSON: %v", err)
			}
			for _, key := range []string{"campaign_card", "state_summary", "recent_turns", "player_input"} {
				if _, ok := payload[key]; !ok {
					t.Errorf("Expected %q in payload", key)
				}
			}
			if _, ok := payload["Purpose"]; ok {
				t.Error("Purpose must not be serialized")
			}
		})
	}
}
