package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

// DefaultHistoryLimit is the number of recent turn records considered for
// the narrative window.
const DefaultHistoryLimit = 8

// Purpose tells a narrative service what kind of reply is expected.
type Purpose string

const (
	PurposeTurn       Purpose = "turn"        // directive line + narrative
	PurposeSummary    Purpose = "summary"     // plain prose recap
	PurposeStarterKit Purpose = "starter_kit" // strict JSON kit
)

// Mechanics carries either a finished roll or the rules digest.
type Mechanics struct {
	RollResult *roll.Outcome `json:"roll_result,omitempty"`
	Rules      *rules.Digest `json:"rules,omitempty"`
}

// Hints are soft requests to the narrator.
type Hints struct {
	WantLoot bool `json:"want_loot,omitempty"`
	OOCOnly  bool `json:"ooc_only,omitempty"`
}

// Meta carries client-side flags echoed to the narrator.
type Meta struct {
	SuppressNarrative bool `json:"suppressNarrative,omitempty"`
}

// Request is the payload sent to the narrative service.
type Request struct {
	Purpose         Purpose               `json:"-"`
	Kickoff         bool                  `json:"kickoff,omitempty"`
	StateSummary    campaign.StateSummary `json:"state_summary"`
	CampaignCard    campaign.Card         `json:"campaign_card"`
	RecentTurns     []chat.Line           `json:"recent_turns"`
	StorySummary    string                `json:"story_summary"`
	Mechanics       *Mechanics            `json:"mechanics,omitempty"`
	Hints           *Hints                `json:"hints,omitempty"`
	TraitVocabulary []string              `json:"trait_vocabulary,omitempty"`
	PlayerInput     string                `json:"player_input"`
	Meta            *Meta                 `json:"meta,omitempty"`
}

// SuppressNarrative reports whether narrative text in the reply must be
// ignored.
func (r *Request) SuppressNarrative() bool {
	return r.Meta != nil && r.Meta.SuppressNarrative
}

// Messages renders the request as chat messages: a system prompt chosen by
// purpose followed by the request JSON as the user message.
func (r *Request) Messages() ([]chat.ChatMessage, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal narrative request: %w", err)
	}
	system := GameMasterSystemPrompt
	switch r.Purpose {
	case PurposeSummary, PurposeStarterKit:
		system = UtilitySystemPrompt
	}
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: system},
		{Role: chat.ChatRoleUser, Content: string(payload)},
	}, nil
}

// Builder constructs narrative requests using a fluent interface.
type Builder struct {
	campaign     *campaign.Campaign
	turns        []chat.TurnRecord
	historyLimit int
	req          Request
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: DefaultHistoryLimit,
		req:          Request{Purpose: PurposeTurn},
	}
}

// WithCampaign sets the campaign snapshot used for the card, sheet and
// story summary.
func (b *Builder) WithCampaign(c *campaign.Campaign) *Builder {
	b.campaign = c
	return b
}

// WithTurns sets the transcript the narrative window is cut from.
func (b *Builder) WithTurns(turns []chat.TurnRecord) *Builder {
	b.turns = turns
	return b
}

// WithHistoryLimit sets the number of recent records considered.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithPlayerInput sets the player's text or an instruction.
func (b *Builder) WithPlayerInput(input string) *Builder {
	b.req.PlayerInput = input
	return b
}

// WithKickoff marks the request as the opening scene.
func (b *Builder) WithKickoff() *Builder {
	b.req.Kickoff = true
	return b
}

// WithRollResult attaches a finished roll.
func (b *Builder) WithRollResult(o *roll.Outcome) *Builder {
	if b.req.Mechanics == nil {
		b.req.Mechanics = &Mechanics{}
	}
	b.req.Mechanics.RollResult = o
	return b
}

// WithRules attaches the narrator-facing rules digest.
func (b *Builder) WithRules(r *rules.Rules) *Builder {
	if b.req.Mechanics == nil {
		b.req.Mechanics = &Mechanics{}
	}
	d := r.Digest()
	b.req.Mechanics.Rules = &d
	return b
}

// WithHints sets soft requests for loot or an OOC-only reply.
func (b *Builder) WithHints(wantLoot, oocOnly bool) *Builder {
	b.req.Hints = &Hints{WantLoot: wantLoot, OOCOnly: oocOnly}
	return b
}

// WithSuppressNarrative asks for the directive line only.
func (b *Builder) WithSuppressNarrative() *Builder {
	b.req.Meta = &Meta{SuppressNarrative: true}
	return b
}

// WithTraitVocabulary includes the allowed trait list.
func (b *Builder) WithTraitVocabulary() *Builder {
	b.req.TraitVocabulary = traits.Vocabulary
	return b
}

// WithPurpose sets the expected reply kind.
func (b *Builder) WithPurpose(p Purpose) *Builder {
	b.req.Purpose = p
	return b
}

// Build constructs and returns the final request.
func (b *Builder) Build() (*Request, error) {
	if b.campaign == nil {
		return nil, fmt.Errorf("campaign is required")
	}
	if b.historyLimit < 0 {
		return nil, fmt.Errorf("history limit must be >= 0, got %d", b.historyLimit)
	}

	req := b.req
	req.StateSummary = b.campaign.Summary()
	req.CampaignCard = b.campaign.Card()
	req.StorySummary = b.campaign.StorySummary
	req.RecentTurns = chat.NarrativeWindow(b.turns, b.historyLimit)
	return &req, nil
}
