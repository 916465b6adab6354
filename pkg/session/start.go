package session

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/directive"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
)

const (
	MsgStarterKitFailed  = "Starter kit AI call failed; nothing generated."
	MsgStarterKitInvalid = "Starter kit invalid; nothing generated."
	MsgStarterKitCreated = "Starter kit created: 3 skills + 3 items."
)

// Start loads the campaign and its history, tops up the sheet and opens
// the session: kickoff narration for a new campaign, a resume notice
// otherwise.
func (o *Orchestrator) Start(ctx context.Context) ([]Event, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	o.started = true
	o.inflight = true
	o.mu.Unlock()

	c, turns, err := o.load(ctx)
	if err != nil {
		o.mu.Lock()
		o.started = false
		o.inflight = false
		o.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	o.campaign = c
	o.history = append([]chat.TurnRecord(nil), turns...)
	if len(o.history) > historyCap {
		o.history = o.history[len(o.history)-historyCap:]
	}
	for _, rec := range turns {
		o.clock.Observe(rec.CreatedAtMs)
	}

	t := &turn{o: o, ctx: ctx}
	c.PC.EnsureDoAnything()
	c.PC.Normalize(o.rules.Wounds.Levels)
	if c.PC.NonFallbackSkills() < directive.StarterKitSize || len(c.Inventory) < directive.StarterKitSize {
		o.starterKit(t)
	}
	if c.PC.Luck < o.rules.Luck.Start {
		c.PC.Luck = o.rules.Luck.Start
	}
	o.save(t)

	if len(turns) == 0 {
		o.narrate(t, prompts.New().
			WithKickoff().
			WithHistoryLimit(o.historyWindow).
			WithRules(o.rules).
			WithPlayerInput(prompts.KickoffInput))
	} else {
		t.notice(fmt.Sprintf("Loaded %d prior turns from campaign history.", len(turns)))
	}

	o.inflight = false
	events := t.events
	o.mu.Unlock()

	o.logger.Info("session started", "prior_turns", len(turns))
	o.publish(ctx, events)
	return events, nil
}

// load reads the snapshot and the turn history concurrently.
func (o *Orchestrator) load(ctx context.Context) (*campaign.Campaign, []chat.TurnRecord, error) {
	var (
		c     *campaign.Campaign
		turns []chat.TurnRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = o.store.LoadCampaign(gctx, o.id)
		if err != nil {
			return fmt.Errorf("failed to load campaign: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		turns, err = o.store.ListTurns(gctx, o.id)
		if err != nil {
			return fmt.Errorf("failed to load turn history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, o.id)
	}
	return c, turns, nil
}

// starterKit asks for three skills and three items and applies them only
// if the whole kit validates.
func (o *Orchestrator) starterKit(t *turn) {
	req, err := prompts.New().
		WithPurpose(prompts.PurposeStarterKit).
		WithCampaign(o.campaign).
		WithPlayerInput(prompts.StarterKitPrompt(o.campaign.Card())).
		Build()
	if err != nil {
		o.logger.Error("failed to build starter kit request", "error", err)
		t.system(MsgStarterKitFailed)
		return
	}

	text, err := o.generate(t.ctx, req)
	if err != nil || strings.TrimSpace(text) == "" {
		o.logger.Warn("starter kit request failed", "error", err)
		t.system(MsgStarterKitFailed)
		return
	}
	kit, err := directive.ParseStarterKit(text)
	if err != nil {
		o.logger.Warn("starter kit rejected", "error", err)
		t.system(MsgStarterKitInvalid)
		return
	}

	pc := &o.campaign.PC
	if pc.NonFallbackSkills() < directive.StarterKitSize {
		fallback := character.NewDoAnything()
		if s := pc.FindSkill(character.DoAnything); s != nil {
			fallback = *s
		}
		pc.Skills = append([]character.Skill{fallback}, kit.Skills...)
	}
	if len(o.campaign.Inventory) < directive.StarterKitSize {
		o.campaign.Inventory = kit.Items
	}
	t.system(MsgStarterKitCreated)
}
