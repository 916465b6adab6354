// Package roll executes skill checks and holds the one-shot luck reroll
// that may be applied before a check is finalized.
package roll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/dice"
	"github.com/jwebster45206/tabletop-session/pkg/modifier"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
)

var (
	ErrNoLuck          = errors.New("no luck available")
	ErrAlreadyRerolled = errors.New("reroll already used")
)

// Request is a roll asked for by the narrator.
type Request struct {
	Skill      string `json:"skill"`
	Difficulty int    `json:"difficulty"`
	Aid        int    `json:"aid"`
}

// Outcome is the result of a check.
type Outcome struct {
	Skill          string     `json:"skill"`
	Level          int        `json:"level"`
	DiceCount      int        `json:"dice"`
	DC             int        `json:"dc"`
	Raw            []int      `json:"raw"`
	ExplosionCount int        `json:"explosionCount"`
	Total          int        `json:"total"`
	Mod            int        `json:"mod"`
	TotalAdj       int        `json:"totalAdj"`
	ModDetails     []string   `json:"modDetails"`
	TierResult     rules.Tier `json:"tierResult"`
}

// AllSixes reports whether the initial dice were all sixes.
func (o *Outcome) AllSixes() bool {
	p := dice.Pool{Dice: o.Raw, Initial: o.DiceCount}
	return p.AllSixes()
}

// Message renders the outcome for the transcript.
func (o *Outcome) Message() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rolled %s (Lvl %d, %dd6) → [%s] total %d", o.Skill, o.Level, o.DiceCount, joinInts(o.Raw), o.Total)
	if len(o.ModDetails) > 0 {
		fmt.Fprintf(&sb, " (mods %+d: %s)", o.Mod, strings.Join(o.ModDetails, ", "))
	}
	fmt.Fprintf(&sb, " vs DC %d → %s", o.DC, o.TierResult)
	return sb.String()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// Execute rolls skill against dc with aid extra dice.
func Execute(roller dice.Roller, skill *character.Skill, pc *character.PC, inv []character.Item, r *rules.Rules, dc, aid int) (*Outcome, error) {
	count := r.DiceForLevel(skill.Level) + aid
	pool, err := dice.RollPool(roller, count, r.AllSixesExplodes)
	if err != nil {
		return nil, fmt.Errorf("failed to roll %s: %w", skill.Name, err)
	}

	mods := modifier.Resolve(skill, pc, inv, r)
	o := &Outcome{
		Skill:          skill.Name,
		Level:          skill.Level,
		DiceCount:      count,
		DC:             dc,
		Raw:            append([]int(nil), pool.Dice...),
		ExplosionCount: pool.Explosions,
		Mod:            mods.Mod,
		ModDetails:     mods.Details,
	}
	o.recompute(r)
	return o, nil
}

func (o *Outcome) recompute(r *rules.Rules) {
	total := 0
	for _, d := range o.Raw {
		total += d
	}
	o.Total = total
	o.TotalAdj = total + o.Mod
	o.TierResult = r.TierFor(o.TotalAdj, o.DC)
}

// Pending is a finished check awaiting the player's reroll decision.
type Pending struct {
	Outcome  *Outcome `json:"outcome"`
	Rerolled bool     `json:"rerolled"`
}

// Change records the die replaced by a reroll.
type Change struct {
	Index int
	Old   int
	New   int
}

// Reroll replaces the first occurrence of the lowest initial die with a
// fresh d6 and re-derives the total and tier. Explosion dice are kept.
// Only one reroll is allowed per check. Luck accounting is the caller's.
func (p *Pending) Reroll(roller dice.Roller, r *rules.Rules) (Change, error) {
	if p.Rerolled {
		return Change{}, ErrAlreadyRerolled
	}
	pool := dice.Pool{Dice: p.Outcome.Raw, Initial: p.Outcome.DiceCount}
	idx := pool.LowestInitial()
	face, err := roller.D6()
	if err != nil {
		return Change{}, fmt.Errorf("failed to reroll: %w", err)
	}
	if face < 1 || face > dice.Sides {
		return Change{}, fmt.Errorf("invalid roll %d for d%d", face, dice.Sides)
	}

	c := Change{Index: idx, Old: p.Outcome.Raw[idx], New: face}
	p.Outcome.Raw[idx] = face
	p.Outcome.recompute(r)
	p.Rerolled = true
	return c, nil
}

// SpendLuckAndReroll debits one luck from pc and rerolls. Nothing changes
// when pc has no luck or the reroll was already used.
func (p *Pending) SpendLuckAndReroll(roller dice.Roller, pc *character.PC, r *rules.Rules) (Change, error) {
	if pc.Luck < 1 {
		return Change{}, ErrNoLuck
	}
	c, err := p.Reroll(roller, r)
	if err != nil {
		return Change{}, err
	}
	pc.Luck--
	return c, nil
}

// RerollMessage renders a reroll for the transcript.
func RerollMessage(c Change, o *Outcome) string {
	return fmt.Sprintf("Spent 1 Luck → rerolled lowest die %d→%d. New total %d → %s.", c.Old, c.New, o.TotalAdj, o.TierResult)
}
