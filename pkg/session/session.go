// Package session runs one campaign's play loop: it sequences player input,
// dice checks, rerolls, loot offers and skill decisions against the
// narrative service and persists every step.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/dice"
	"github.com/jwebster45206/tabletop-session/pkg/loot"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

const (
	DefaultHistoryWindow = prompts.DefaultHistoryLimit
	DefaultSummaryEvery  = 10

	commandWindow = 6  // recent records sent with OOC-only commands
	summaryWindow = 30 // recent records sent to the scribe
	historyCap    = 64 // in-memory transcript tail
)

var (
	ErrNotStarted        = errors.New("session not started")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrBusy              = errors.New("narrative reply in flight")
	ErrEmptyInput        = errors.New("input is empty")
	ErrNoRollPending     = errors.New("no roll requested")
	ErrNoRerollPending   = errors.New("no reroll offer pending")
	ErrRerollPending     = errors.New("reroll offer must be resolved first")
	ErrNoLootPending     = errors.New("no loot offer pending")
	ErrNoDecisionPending = errors.New("no decision pending")
	ErrDecisionPending   = errors.New("decision must be resolved first")
)

// State is the dominant protocol state of a session.
type State string

const (
	StateIdle                   State = "idle"
	StateAwaitingNarrativeReply State = "awaiting_narrative_reply"
	StateRollRequested          State = "roll_requested"
	StateRollOffered            State = "roll_offered"
	StateLootOffered            State = "loot_offered"
	StateAwaitingDecision       State = "awaiting_decision"
	StateTestMode               State = "test_mode"
)

// EventKind classifies a user-visible event. Transcript kinds share their
// names with chat roles.
type EventKind string

const (
	EventPlayer      EventKind = EventKind(chat.RolePlayer)
	EventOOC         EventKind = EventKind(chat.RoleOOC)
	EventNarration   EventKind = EventKind(chat.RoleNarration)
	EventSystem      EventKind = EventKind(chat.RoleSystem)
	EventRoll        EventKind = EventKind(chat.RoleRoll)
	EventRerollOffer EventKind = "reroll_offer"
	EventLootOffer   EventKind = "loot_offer"
	EventDecision    EventKind = "decision"
)

// Event is something the player should see, produced by one operation.
type Event struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
	Data any       `json:"data,omitempty"`
}

// DecisionKind names the open player decision.
type DecisionKind string

const (
	DecisionNewSkill       DecisionKind = "new_skill"
	DecisionSpecialization DecisionKind = "specialization"
)

// Decision is a naming choice the player owes before play continues.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Parent string       `json:"parent,omitempty"`
	Prompt string       `json:"prompt"`
}

// Narrator produces reply text for a request.
type Narrator interface {
	Generate(ctx context.Context, req *prompts.Request) (string, error)
}

// Publisher fans produced events out to other listeners.
type Publisher interface {
	Publish(ctx context.Context, campaignID uuid.UUID, events []Event) error
}

// Config holds the collaborators shared by every session.
type Config struct {
	Storage       storage.Storage
	Narrator      Narrator
	Roller        dice.Roller
	Rules         *rules.Rules
	Logger        *slog.Logger
	Publisher     Publisher
	Clock         *chat.Clock
	HistoryWindow int
	SummaryEvery  int
}

// pendingRoll is a finished check awaiting the reroll decision.
type pendingRoll struct {
	roll.Pending
	skill string
}

// deferredNarration is a finalized roll whose narration waits for an open
// decision.
type deferredNarration struct {
	outcome  *roll.Outcome
	rerolled bool
}

// Orchestrator drives a single campaign. Methods are safe for concurrent
// use; narrative-triggering operations are rejected with ErrBusy while a
// reply is in flight.
type Orchestrator struct {
	id            uuid.UUID
	store         storage.Storage
	narrator      Narrator
	roller        dice.Roller
	rules         *rules.Rules
	logger        *slog.Logger
	publisher     Publisher
	clock         *chat.Clock
	historyWindow int
	summaryEvery  int

	mu                sync.Mutex
	started           bool
	inflight          bool
	campaign          *campaign.Campaign
	history           []chat.TurnRecord
	rollPending       *roll.Request
	pendingReroll     *pendingRoll
	pendingLoot       *loot.Proposal
	decision          *Decision
	deferred          *deferredNarration
	testMode          bool
	turnsSinceSummary int
}

// New creates an orchestrator for campaign id. Start must be called before
// any other operation.
func New(id uuid.UUID, cfg Config) *Orchestrator {
	o := &Orchestrator{
		id:            id,
		store:         cfg.Storage,
		narrator:      cfg.Narrator,
		roller:        cfg.Roller,
		rules:         cfg.Rules,
		logger:        cfg.Logger,
		publisher:     cfg.Publisher,
		clock:         cfg.Clock,
		historyWindow: cfg.HistoryWindow,
		summaryEvery:  cfg.SummaryEvery,
	}
	if o.roller == nil {
		o.roller = dice.NewRandomRoller()
	}
	if o.rules == nil {
		o.rules = rules.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = chat.NewClock()
	}
	if o.historyWindow <= 0 {
		o.historyWindow = DefaultHistoryWindow
	}
	if o.summaryEvery == 0 {
		o.summaryEvery = DefaultSummaryEvery
	}
	o.logger = o.logger.With("campaign_id", id)
	return o
}

// ID returns the campaign this orchestrator drives.
func (o *Orchestrator) ID() uuid.UUID {
	return o.id
}

// State reports the dominant protocol state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	switch {
	case o.inflight:
		return StateAwaitingNarrativeReply
	case o.decision != nil:
		return StateAwaitingDecision
	case o.pendingReroll != nil:
		return StateRollOffered
	case o.rollPending != nil:
		return StateRollRequested
	case o.pendingLoot != nil:
		return StateLootOffered
	case o.testMode:
		return StateTestMode
	default:
		return StateIdle
	}
}

// View is a read-only copy of the session for display.
type View struct {
	CampaignID    uuid.UUID        `json:"campaignId"`
	State         State            `json:"state"`
	Title         string           `json:"title"`
	PC            character.PC     `json:"pc"`
	Inventory     []character.Item `json:"inventory"`
	StorySummary  string           `json:"storySummary,omitempty"`
	RollRequest   *roll.Request    `json:"rollRequest,omitempty"`
	PendingReroll *roll.Outcome    `json:"pendingReroll,omitempty"`
	LootOffer     *loot.Proposal   `json:"lootOffer,omitempty"`
	Decision      *Decision        `json:"decision,omitempty"`
	TestMode      bool             `json:"testMode"`
}

// Snapshot returns the current view, or ErrNotStarted.
func (o *Orchestrator) Snapshot() (*View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.campaign == nil {
		return nil, ErrNotStarted
	}

	v := &View{
		CampaignID:   o.id,
		State:        o.stateLocked(),
		Title:        o.campaign.Title,
		PC:           clonePC(o.campaign.PC),
		Inventory:    cloneItems(o.campaign.Inventory),
		StorySummary: o.campaign.StorySummary,
		TestMode:     o.testMode,
	}
	if o.rollPending != nil {
		req := *o.rollPending
		v.RollRequest = &req
	}
	if o.pendingReroll != nil {
		v.PendingReroll = copyOutcome(o.pendingReroll.Outcome)
	}
	if o.pendingLoot != nil {
		p := loot.Proposal{Items: make([]loot.Candidate, len(o.pendingLoot.Items))}
		for i, c := range o.pendingLoot.Items {
			c.Matches = append([]string(nil), c.Matches...)
			p.Items[i] = c
		}
		v.LootOffer = &p
	}
	if o.decision != nil {
		d := *o.decision
		v.Decision = &d
	}
	return v, nil
}

func clonePC(pc character.PC) character.PC {
	out := pc
	out.Statuses = append([]string{}, pc.Statuses...)
	out.Skills = make([]character.Skill, len(pc.Skills))
	for i, s := range pc.Skills {
		s.Traits = append([]string{}, s.Traits...)
		out.Skills[i] = s
	}
	return out
}

func cloneItems(inv []character.Item) []character.Item {
	out := make([]character.Item, len(inv))
	for i, it := range inv {
		it.Matches = append([]string{}, it.Matches...)
		out[i] = it
	}
	return out
}
