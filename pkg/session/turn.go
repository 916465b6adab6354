package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/directive"
	"github.com/jwebster45206/tabletop-session/pkg/loot"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
)

const (
	MsgAIUnavailable   = "AI unavailable."
	MsgAIFormatError   = "(AI format error)"
	MsgAIRequestFailed = "AI request failed."
	MsgBusy            = "Still waiting on the narrator. Try again in a moment."
	MsgPersistFailed   = "Could not save to campaign history; play continues."
	MsgSummaryUpdated  = "Story summary updated."
)

// turn collects the events produced by one operation. It is only used
// while o.mu is held.
type turn struct {
	o             *Orchestrator
	ctx           context.Context
	events        []Event
	persistFailed bool
}

func (t *turn) emit(kind EventKind, text string, data any) {
	t.events = append(t.events, Event{Kind: kind, Text: text, Data: data})
}

// notice shows text without adding it to the transcript.
func (t *turn) notice(text string) {
	t.emit(EventSystem, text, nil)
}

// system records a local notice.
func (t *turn) system(text string) {
	t.record(chat.RoleSystem, text, nil)
}

// record appends a transcript entry, in memory and in storage. Storage
// failures are logged and surfaced once per operation.
func (t *turn) record(role chat.Role, text string, extras map[string]any) {
	o := t.o
	rec := chat.NewTurn(o.clock, role, text, extras)
	o.appendHistory(rec)
	if !o.testMode {
		o.turnsSinceSummary++
	}
	var data any
	if extras != nil {
		data = extras
	}
	t.emit(EventKind(role), text, data)

	if err := o.store.AppendTurn(t.ctx, o.id, rec); err != nil {
		o.logger.Error("failed to persist turn", "role", role, "error", err)
		t.persistFailure()
	}
}

func (t *turn) persistFailure() {
	if t.persistFailed {
		return
	}
	t.persistFailed = true
	t.notice(MsgPersistFailed)
}

func (o *Orchestrator) appendHistory(rec chat.TurnRecord) {
	o.history = append(o.history, rec)
	if len(o.history) > historyCap {
		o.history = o.history[len(o.history)-historyCap:]
	}
}

// run executes fn under the session lock. Narrative operations are
// serialized by the inflight flag and may trigger the rolling summary.
func (o *Orchestrator) run(ctx context.Context, narrative bool, fn func(t *turn) error) ([]Event, error) {
	o.mu.Lock()
	if o.campaign == nil {
		o.mu.Unlock()
		return nil, ErrNotStarted
	}

	t := &turn{o: o, ctx: ctx}
	if narrative {
		if o.inflight {
			t.notice(MsgBusy)
			o.mu.Unlock()
			return t.events, ErrBusy
		}
		o.inflight = true
	}

	err := fn(t)
	if narrative {
		if err == nil {
			o.maybeSummarize(t)
		}
		o.inflight = false
	}
	events := t.events
	o.mu.Unlock()

	o.publish(ctx, events)
	return events, err
}

func (o *Orchestrator) publish(ctx context.Context, events []Event) {
	if o.publisher == nil || len(events) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, o.id, events); err != nil {
		o.logger.Warn("failed to publish session events", "error", err)
	}
}

// save normalizes and writes the snapshot. Failures never roll back
// local state.
func (o *Orchestrator) save(t *turn) {
	o.campaign.PC.Normalize(o.rules.Wounds.Levels)
	o.campaign.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveCampaign(t.ctx, o.campaign); err != nil {
		o.logger.Error("failed to save campaign", "error", err)
		t.persistFailure()
	}
}

// generate calls the narrator with the session lock released. Callers must
// hold o.mu and have set o.inflight.
func (o *Orchestrator) generate(ctx context.Context, req *prompts.Request) (string, error) {
	if o.narrator == nil {
		return "", errors.New("no narrative service configured")
	}
	o.mu.Unlock()
	defer o.mu.Lock()
	return o.narrator.Generate(ctx, req)
}

// narrate completes b with the campaign context, sends it and applies the
// reply. Failures are recorded as notices and leave state untouched.
func (o *Orchestrator) narrate(t *turn, b *prompts.Builder) {
	req, err := b.WithCampaign(o.campaign).WithTurns(o.history).Build()
	if err != nil {
		o.logger.Error("failed to build narrative request", "error", err)
		t.system(MsgAIRequestFailed)
		return
	}

	text, err := o.generate(t.ctx, req)
	if err != nil {
		o.logger.Error("narrative request failed", "error", err)
		t.system(MsgAIRequestFailed)
		return
	}
	if strings.TrimSpace(text) == "" {
		o.logger.Warn("narrative service returned an empty reply")
		t.system(MsgAIUnavailable)
		return
	}

	reply, err := directive.Parse(text)
	if err != nil {
		var fe *directive.FormatError
		if errors.As(err, &fe) {
			o.logger.Warn("malformed narrative reply", "line", fe.Line, "error", fe.Err)
		} else {
			o.logger.Warn("failed to parse narrative reply", "error", err)
		}
		t.system(MsgAIFormatError)
		return
	}
	o.applyReply(t, reply, req.SuppressNarrative())
}

// applyReply acts on a parsed directive: loot offer, roll request, OOC
// line, then narrative prose.
func (o *Orchestrator) applyReply(t *turn, reply *directive.Reply, suppress bool) {
	if p := reply.Proposal(); p != nil {
		if offer := loot.NewProposal(p.Add); offer != nil {
			if o.pendingLoot != nil {
				t.system("A loot offer is already open; the new proposal was ignored.")
			} else {
				o.pendingLoot = offer
				t.emit(EventLootOffer, offer.Summary(), offer)
			}
		}
	}

	ooc := reply.OOC
	extras := map[string]any{"ooc": ooc}
	if ooc.NeedRoll {
		if o.rollPending != nil || o.pendingReroll != nil {
			t.system("A roll is already pending; the new roll request was ignored.")
		} else {
			req := &roll.Request{Skill: strings.TrimSpace(ooc.Skill), Difficulty: int(ooc.Difficulty)}
			if req.Skill == "" {
				req.Skill = character.DoAnything
			}
			if req.Difficulty <= 0 {
				req.Difficulty = rules.TestDifficulty
			}
			o.rollPending = req

			level := 1
			if s := o.campaign.PC.FindSkill(req.Skill); s != nil {
				level = s.Level
			}
			text := fmt.Sprintf("Roll %s %dd6 vs %d", req.Skill, o.rules.DiceForLevel(level), req.Difficulty)
			if note := strings.TrimSpace(ooc.Note); note != "" {
				text += " — " + note
			}
			t.record(chat.RoleOOC, text, extras)
		}
	} else {
		prompt := strings.TrimSpace(ooc.Prompt)
		if prompt == "" {
			prompt = "…"
		}
		t.record(chat.RoleOOC, prompt, extras)
	}

	if !suppress && reply.Narrative != "" {
		t.record(chat.RoleNarration, reply.Narrative, nil)
	}
}

// maybeSummarize refreshes the rolling story summary every summaryEvery
// recorded turns. Failures only reset the counter.
func (o *Orchestrator) maybeSummarize(t *turn) {
	if o.summaryEvery < 0 || o.testMode || o.turnsSinceSummary < o.summaryEvery {
		return
	}
	o.turnsSinceSummary = 0

	req, err := prompts.New().
		WithPurpose(prompts.PurposeSummary).
		WithCampaign(o.campaign).
		WithPlayerInput(prompts.ScribePrompt(o.campaign.StorySummary, chat.NarrativeWindow(o.history, summaryWindow))).
		Build()
	if err != nil {
		o.logger.Error("failed to build summary request", "error", err)
		return
	}

	text, err := o.generate(t.ctx, req)
	if err != nil {
		o.logger.Warn("story summary request failed", "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		o.logger.Warn("story summary reply was empty")
		return
	}

	o.campaign.StorySummary = text
	if err := o.store.UpdateStorySummary(t.ctx, o.id, text); err != nil {
		o.logger.Error("failed to store story summary", "error", err)
		t.persistFailure()
	}
	t.system(MsgSummaryUpdated)
	o.turnsSinceSummary = 0
}
