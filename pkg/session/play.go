package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/loot"
	"github.com/jwebster45206/tabletop-session/pkg/progression"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

const (
	MsgRollPending     = "A roll is pending. Tap a Skill name in the tray to roll."
	MsgRerollPending   = "Resolve the pending reroll first."
	MsgDecisionPending = "Answer the pending decision first."
	MsgNoRollRequested = "No roll requested right now."
	MsgRerollOffer     = "You may spend 1 Luck to reroll your lowest die, or resolve as-is."
	MsgNoLuck          = "No Luck available."
	MsgTestReceived    = "(Test mode) Message received."
	MsgTestRollDone    = "(Test mode) Roll complete — no narration."
	MsgNewSkillPrompt  = "Success with Do Anything! Name the new related skill (Level 1)."
	MsgSkillCancelled  = "Cancelled skill creation."
	MsgNoValidTraits   = "No valid traits selected; skill not created."
	MsgDoAnythingLevel = `"Do Anything" cannot be leveled.`
)

// SubmitInput handles a line typed by the player. Star commands are applied
// locally; anything else is logged and, outside test mode, sent to the
// narrator.
func (o *Orchestrator) SubmitInput(ctx context.Context, text string) ([]Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if cmd, ok := parseCommand(text); ok {
		return o.runCommand(ctx, cmd)
	}

	return o.run(ctx, true, func(t *turn) error {
		if o.decision != nil {
			t.notice(MsgDecisionPending)
			return ErrDecisionPending
		}
		t.record(chat.RolePlayer, text, nil)
		switch {
		case o.testMode:
			t.system(MsgTestReceived)
		case o.pendingReroll != nil:
			t.system(MsgRerollPending)
		case o.rollPending != nil:
			t.system(MsgRollPending)
		default:
			o.narrate(t, prompts.New().
				WithHistoryLimit(o.historyWindow).
				WithRules(o.rules).
				WithPlayerInput(prompts.PlayerInput(text)))
		}
		return nil
	})
}

// Roll makes the requested check with the named skill. In test mode any
// skill may be rolled against rules.TestDifficulty.
func (o *Orchestrator) Roll(ctx context.Context, skillName string) ([]Event, error) {
	return o.run(ctx, true, func(t *turn) error {
		if o.decision != nil {
			t.notice(MsgDecisionPending)
			return ErrDecisionPending
		}
		if o.pendingReroll != nil {
			t.notice(MsgRerollPending)
			return ErrRerollPending
		}

		dc, aid := rules.TestDifficulty, 0
		if !o.testMode {
			if o.rollPending == nil {
				t.system(MsgNoRollRequested)
				return ErrNoRollPending
			}
			dc, aid = o.rollPending.Difficulty, o.rollPending.Aid
		}

		pc := &o.campaign.PC
		pc.EnsureDoAnything()
		skill := pc.FindSkill(skillName)
		if skill == nil {
			t.notice(fmt.Sprintf("Unknown skill %q.", skillName))
			return fmt.Errorf("%w: %s", progression.ErrSkillNotFound, skillName)
		}

		outcome, err := roll.Execute(o.roller, skill, pc, o.campaign.Inventory, o.rules, dc, aid)
		if err != nil {
			o.logger.Error("failed to execute roll", "skill", skill.Name, "error", err)
			t.notice("Roll failed.")
			return err
		}
		o.rollPending = nil
		t.record(chat.RoleRoll, outcome.Message(), outcomeExtras(outcome))

		if outcome.AllSixes() {
			o.allSixesBonus(t, outcome.Skill)
		}

		if pc.Luck >= 1 {
			o.pendingReroll = &pendingRoll{Pending: roll.Pending{Outcome: outcome}, skill: outcome.Skill}
			t.emit(EventRerollOffer, MsgRerollOffer, copyOutcome(outcome))
			return nil
		}
		o.finalize(t, outcome, false)
		return nil
	})
}

// ResolveReroll answers the reroll offer. Accepting spends one luck and
// rerolls the lowest initial die; either way the roll is then finalized.
func (o *Orchestrator) ResolveReroll(ctx context.Context, accept bool) ([]Event, error) {
	return o.run(ctx, true, func(t *turn) error {
		p := o.pendingReroll
		if p == nil {
			t.notice("No reroll offer pending.")
			return ErrNoRerollPending
		}
		if accept {
			change, err := p.SpendLuckAndReroll(o.roller, &o.campaign.PC, o.rules)
			if errors.Is(err, roll.ErrNoLuck) {
				t.system(MsgNoLuck)
				return err
			}
			if err != nil {
				o.logger.Error("failed to reroll", "skill", p.skill, "error", err)
				t.notice("Reroll failed.")
				return err
			}
			t.record(chat.RoleRoll, roll.RerollMessage(change, p.Outcome), outcomeExtras(p.Outcome))
		}
		o.finalize(t, p.Outcome, accept)
		return nil
	})
}

// allSixesBonus raises the rolled skill for free, or opens a
// specialization decision when it is already at max level.
func (o *Orchestrator) allSixesBonus(t *turn, name string) {
	t.system(fmt.Sprintf("ALL 6s! %s levels up!", name))
	res, err := progression.FreeLevelUp(&o.campaign.PC, name)
	switch {
	case errors.Is(err, progression.ErrDoAnythingLocked):
		t.system(MsgDoAnythingLevel)
	case err != nil:
		o.logger.Error("failed to apply all-sixes bonus", "skill", name, "error", err)
	case res.NeedsSpecialization:
		o.openDecision(t, &Decision{
			Kind:   DecisionSpecialization,
			Parent: res.Skill,
			Prompt: fmt.Sprintf("%s is already Level %d. Name a specialization (default %q).", res.Skill, rules.MaxLevel, progression.SpecializationName(res.Skill)),
		})
	default:
		t.system(fmt.Sprintf("%s leveled up to Level %d.", res.Skill, res.NewLevel))
		o.save(t)
	}
}

// finalize closes a roll: fail XP, the Do Anything new-skill decision, then
// narration unless it must wait for a decision or test mode is on.
func (o *Orchestrator) finalize(t *turn, outcome *roll.Outcome, rerolled bool) {
	o.pendingReroll = nil
	pc := &o.campaign.PC

	if outcome.TierResult == rules.TierFail && o.rules.XPOnFail > 0 {
		pc.AdjustXP(o.rules.XPOnFail)
		t.system(fmt.Sprintf("+%d XP for the failed roll → %d", o.rules.XPOnFail, pc.XP))
	}
	if outcome.Skill == character.DoAnything && outcome.TierResult != rules.TierFail {
		o.openDecision(t, &Decision{Kind: DecisionNewSkill, Prompt: MsgNewSkillPrompt})
	}
	o.save(t)

	switch {
	case o.testMode:
		t.system(MsgTestRollDone)
	case o.decision != nil:
		o.deferred = &deferredNarration{outcome: outcome, rerolled: rerolled}
	default:
		o.narrateRoll(t, outcome, rerolled)
	}
}

func (o *Orchestrator) narrateRoll(t *turn, outcome *roll.Outcome, rerolled bool) {
	o.narrate(t, prompts.New().
		WithHistoryLimit(o.historyWindow).
		WithRollResult(outcome).
		WithPlayerInput(prompts.ResolveInput(rerolled)))
}

func (o *Orchestrator) openDecision(t *turn, d *Decision) {
	o.decision = d
	cp := *d
	t.emit(EventDecision, d.Prompt, &cp)
}

// resumeDeferred sends narration held back by a decision once nothing
// else is open.
func (o *Orchestrator) resumeDeferred(t *turn) {
	if o.deferred == nil || o.decision != nil || o.pendingReroll != nil {
		return
	}
	d := o.deferred
	o.deferred = nil
	o.narrateRoll(t, d.outcome, d.rerolled)
}

// ResolveDecision answers the open naming decision. For a new skill an
// empty name cancels; for a specialization it takes the default name.
// Any held-back roll narration follows.
func (o *Orchestrator) ResolveDecision(ctx context.Context, name string, tags []string) ([]Event, error) {
	return o.run(ctx, true, func(t *turn) error {
		d := o.decision
		if d == nil {
			t.notice("No decision pending.")
			return ErrNoDecisionPending
		}
		name = strings.TrimSpace(name)
		pc := &o.campaign.PC

		var err error
		switch d.Kind {
		case DecisionNewSkill:
			err = o.resolveNewSkill(t, pc, name, tags)
		case DecisionSpecialization:
			var s *character.Skill
			s, err = progression.GrantSpecialization(pc, d.Parent, name)
			if errors.Is(err, progression.ErrDuplicateSkill) {
				if name == "" {
					name = progression.SpecializationName(d.Parent)
				}
				t.system(fmt.Sprintf("Skill %q already exists.", name))
				return err
			}
			o.decision = nil
			if err != nil {
				o.logger.Error("failed to grant specialization", "parent", d.Parent, "error", err)
				t.system(fmt.Sprintf("Could not unlock a specialization for %s.", d.Parent))
				break
			}
			t.system(fmt.Sprintf("Unlocked specialization: %s (Level 1).", s.Name))
			o.save(t)
		}

		o.resumeDeferred(t)
		return err
	})
}

func (o *Orchestrator) resolveNewSkill(t *turn, pc *character.PC, name string, tags []string) error {
	o.decision = nil
	if name == "" {
		t.system(MsgSkillCancelled)
		return nil
	}
	s, err := progression.CreateSkill(pc, name, tags)
	switch {
	case errors.Is(err, progression.ErrDuplicateSkill):
		t.system(fmt.Sprintf("Skill %q already exists.", name))
		return err
	case errors.Is(err, progression.ErrNoValidTraits):
		t.system(MsgNoValidTraits)
		return err
	case err != nil:
		return err
	}
	t.system(fmt.Sprintf("New skill created: %s (Level 1) — traits: %s.", s.Name, traits.Labels(s.Traits)))
	o.save(t)
	return nil
}

// CancelDecision dismisses the open decision: a new skill is not created
// and a specialization takes its default name.
func (o *Orchestrator) CancelDecision(ctx context.Context) ([]Event, error) {
	return o.ResolveDecision(ctx, "", nil)
}

// ResolveLoot accepts or declines the open loot offer as a whole.
func (o *Orchestrator) ResolveLoot(ctx context.Context, accept bool) ([]Event, error) {
	return o.run(ctx, false, func(t *turn) error {
		offer := o.pendingLoot
		if offer == nil {
			t.notice("No loot offer pending.")
			return ErrNoLootPending
		}
		o.pendingLoot = nil
		if !accept {
			t.system(loot.MsgDeclined)
			return nil
		}

		inv, added := offer.Accept(o.campaign.Inventory)
		o.campaign.Inventory = inv
		if added == 0 {
			t.system(loot.MsgNothing)
			return nil
		}
		t.system(loot.MsgAccepted)
		o.save(t)
		return nil
	})
}

// LevelUp spends XP to raise a skill one level.
func (o *Orchestrator) LevelUp(ctx context.Context, skillName string) ([]Event, error) {
	return o.run(ctx, false, func(t *turn) error {
		pc := &o.campaign.PC
		s, err := progression.LevelUp(pc, skillName, o.rules)
		if err != nil {
			t.system(o.progressionNotice(err, skillName, "level up", o.levelCost(skillName)))
			return err
		}
		t.system(fmt.Sprintf("%s leveled up to Level %d.", s.Name, s.Level))
		o.save(t)
		return nil
	})
}

// Specialize spends XP to branch a level 4 skill. An empty specName uses
// the default specialization name.
func (o *Orchestrator) Specialize(ctx context.Context, skillName, specName string) ([]Event, error) {
	return o.run(ctx, false, func(t *turn) error {
		pc := &o.campaign.PC
		s, err := progression.Specialize(pc, skillName, specName, o.rules)
		if err != nil {
			t.system(o.progressionNotice(err, skillName, "unlock a specialization for", o.rules.SpecializationCost()))
			return err
		}
		t.system(fmt.Sprintf("Unlocked specialization: %s (Level 1).", s.Name))
		o.save(t)
		return nil
	})
}

// BuyLuck converts XP into one luck.
func (o *Orchestrator) BuyLuck(ctx context.Context) ([]Event, error) {
	return o.run(ctx, false, func(t *turn) error {
		return o.buyLuck(t)
	})
}

func (o *Orchestrator) buyLuck(t *turn) error {
	cost := o.rules.Luck.XPCost
	if err := progression.BuyLuck(&o.campaign.PC, o.rules); err != nil {
		t.system(fmt.Sprintf("Not enough XP to buy Luck (need %d XP).", cost))
		return err
	}
	t.system(fmt.Sprintf("Spent %d XP → +1 Luck.", cost))
	o.save(t)
	return nil
}

func (o *Orchestrator) levelCost(name string) int {
	if s := o.campaign.PC.FindSkill(name); s != nil {
		return o.rules.XPCostToNext(s.Level)
	}
	return 0
}

func (o *Orchestrator) progressionNotice(err error, name, action string, cost int) string {
	if s := o.campaign.PC.FindSkill(name); s != nil {
		name = s.Name
	}
	switch {
	case errors.Is(err, progression.ErrInsufficientXP):
		return fmt.Sprintf("Need %d XP to %s %s. You have %d.", cost, action, name, o.campaign.PC.XP)
	case errors.Is(err, progression.ErrMaxLevel):
		return fmt.Sprintf("%s is already at max level (Level %d).", name, rules.MaxLevel)
	case errors.Is(err, progression.ErrNotMaxLevel):
		return fmt.Sprintf("%s must be Level %d to specialize.", name, rules.MaxLevel)
	case errors.Is(err, progression.ErrDoAnythingLocked):
		return `"Do Anything" cannot be leveled or specialized.`
	case errors.Is(err, progression.ErrDuplicateSkill):
		return "That specialization already exists."
	case errors.Is(err, progression.ErrSkillNotFound):
		return fmt.Sprintf("Unknown skill %q.", name)
	default:
		return err.Error()
	}
}

func copyOutcome(o *roll.Outcome) *roll.Outcome {
	cp := *o
	cp.Raw = append([]int(nil), o.Raw...)
	cp.ModDetails = append([]string(nil), o.ModDetails...)
	return &cp
}

// outcomeExtras snapshots an outcome for a roll record so later rerolls do
// not rewrite history.
func outcomeExtras(o *roll.Outcome) map[string]any {
	return map[string]any{"roll": copyOutcome(o)}
}
