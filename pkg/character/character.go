// Package character holds the player character sheet: skills, stats and
// the inventory merge rules.
package character

import (
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

const (
	// DoAnything is the always-present fallback skill.
	DoAnything = "Do Anything"

	MaxItemNameLength = 64
	MaxProposalQty    = 3
)

// Skill is a named, leveled ability tagged with up to two traits.
type Skill struct {
	Name   string   `json:"name"`
	Level  int      `json:"level"`
	Traits []string `json:"traits"`
}

// IsDoAnything reports whether s is the fallback skill.
func (s *Skill) IsDoAnything() bool {
	return s.Name == DoAnything
}

// Item is an inventory entry. Matches lists the traits the item helps with.
type Item struct {
	Name    string   `json:"name"`
	Qty     int      `json:"qty"`
	Matches []string `json:"matches"`
}

// PC is the single local player character.
type PC struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Background  string   `json:"background,omitempty"`
	Portrait    string   `json:"portrait,omitempty"`
	Wounds      int      `json:"wounds"`
	Luck        int      `json:"luck"`
	XP          int      `json:"xp"`
	Statuses    []string `json:"statuses"`
	Skills      []Skill  `json:"skills"`
}

// NewDoAnything returns a fresh fallback skill.
func NewDoAnything() Skill {
	return Skill{Name: DoAnything, Level: 1, Traits: []string{"improv"}}
}

// EnsureDoAnything inserts the fallback skill at the front if it is
// missing. It reports whether the sheet changed.
func (pc *PC) EnsureDoAnything() bool {
	for _, s := range pc.Skills {
		if s.IsDoAnything() {
			return false
		}
	}
	pc.Skills = append([]Skill{NewDoAnything()}, pc.Skills...)
	return true
}

// FindSkill looks a skill up by name, ignoring case. The returned pointer
// aliases the sheet.
func (pc *PC) FindSkill(name string) *Skill {
	n := strings.TrimSpace(name)
	for i := range pc.Skills {
		if strings.EqualFold(pc.Skills[i].Name, n) {
			return &pc.Skills[i]
		}
	}
	return nil
}

// HasSkill reports whether a skill with name exists, ignoring case.
func (pc *PC) HasSkill(name string) bool {
	return pc.FindSkill(name) != nil
}

// NonFallbackSkills counts skills other than Do Anything.
func (pc *PC) NonFallbackSkills() int {
	n := 0
	for _, s := range pc.Skills {
		if !s.IsDoAnything() {
			n++
		}
	}
	return n
}

// Normalize clamps levels and stats and sanitizes trait lists, as done
// before every snapshot write.
func (pc *PC) Normalize(woundLevels int) {
	pc.Wounds = max(0, min(woundLevels, pc.Wounds))
	pc.Luck = max(0, pc.Luck)
	pc.XP = max(0, pc.XP)
	if pc.Statuses == nil {
		pc.Statuses = []string{}
	}
	for i := range pc.Skills {
		s := &pc.Skills[i]
		s.Level = max(1, min(4, s.Level))
		s.Traits = traits.Sanitize(s.Traits, traits.MaxPerEntry)
	}
	pc.EnsureDoAnything()
}

// AdjustWounds moves the wound track by delta, clamped to 0..levels.
func (pc *PC) AdjustWounds(delta, levels int) {
	pc.Wounds = max(0, min(levels, pc.Wounds+delta))
}

// AdjustLuck moves luck by delta, never below zero.
func (pc *PC) AdjustLuck(delta int) {
	pc.Luck = max(0, pc.Luck+delta)
}

// AdjustXP moves XP by delta, never below zero.
func (pc *PC) AdjustXP(delta int) {
	pc.XP = max(0, pc.XP+delta)
}

// AddStatus adds a status unless it is already present (ignoring case).
func (pc *PC) AddStatus(status string) bool {
	status = strings.TrimSpace(status)
	if status == "" {
		return false
	}
	for _, s := range pc.Statuses {
		if strings.EqualFold(s, status) {
			return false
		}
	}
	pc.Statuses = append(pc.Statuses, status)
	return true
}

// RemoveStatus removes every status equal to status, ignoring case.
func (pc *PC) RemoveStatus(status string) bool {
	status = strings.TrimSpace(status)
	kept := pc.Statuses[:0]
	removed := false
	for _, s := range pc.Statuses {
		if strings.EqualFold(s, status) {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	pc.Statuses = kept
	return removed
}

// NormalizeItem trims the name, clamps quantity to 1..3 and sanitizes
// matches. ok is false when the name is empty.
func NormalizeItem(it Item) (Item, bool) {
	name := strings.TrimSpace(it.Name)
	if r := []rune(name); len(r) > MaxItemNameLength {
		name = string(r[:MaxItemNameLength])
	}
	if name == "" {
		return Item{}, false
	}
	qty := it.Qty
	if qty < 1 {
		qty = 1
	}
	return Item{
		Name:    name,
		Qty:     min(MaxProposalQty, qty),
		Matches: traits.Sanitize(it.Matches, traits.MaxPerEntry),
	}, true
}

// MergeItem adds it to inv. Same-named items (ignoring case) merge:
// quantities add and matches union, capped at two tags.
func MergeItem(inv []Item, it Item) ([]Item, bool) {
	it, ok := NormalizeItem(it)
	if !ok {
		return inv, false
	}
	for i := range inv {
		if strings.EqualFold(inv[i].Name, it.Name) {
			inv[i].Qty = max(1, inv[i].Qty+it.Qty)
			inv[i].Matches = traits.Union(inv[i].Matches, it.Matches)
			return inv, true
		}
	}
	return append(inv, it), true
}
