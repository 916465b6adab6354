// Package modifier totals the situational bonuses and penalties that apply
// to a check with a given skill.
package modifier

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

// Result is the net modifier and one detail entry per contributing source.
type Result struct {
	Mod     int      `json:"mod"`
	Details []string `json:"details"`
}

// String renders details for display, e.g. "wounds -3, Rope +1".
func (r Result) String() string {
	if len(r.Details) == 0 {
		return "none"
	}
	return strings.Join(r.Details, ", ")
}

func (r *Result) add(label string, v int) {
	r.Mod += v
	r.Details = append(r.Details, fmt.Sprintf("%s %+d", label, v))
}

// Resolve applies, in order: the wound penalty (once), status tables,
// item tables (scaled by quantity) and item match tags (+1 each). Every
// contribution is listed; nothing is collapsed.
func Resolve(skill *character.Skill, pc *character.PC, inv []character.Item, r *rules.Rules) Result {
	res := Result{Details: []string{}}
	skillTraits := traits.Sanitize(skill.Traits, traits.MaxPerEntry)

	if pc.Wounds >= r.Wounds.PenaltyAtOrAbove {
		res.add("wounds", r.Wounds.PenaltyValue)
	}

	for _, status := range pc.Statuses {
		tbl, ok := r.Statuses[strings.ToLower(strings.TrimSpace(status))]
		if !ok {
			continue
		}
		for _, tag := range tbl.SortedTags() {
			if traits.Contains(skillTraits, tag) {
				res.add(status, tbl[tag])
			}
		}
	}

	for _, it := range inv {
		qty := max(1, it.Qty)
		if tbl, ok := r.Items[strings.ToLower(strings.TrimSpace(it.Name))]; ok {
			for _, tag := range tbl.SortedTags() {
				if traits.Contains(skillTraits, tag) {
					res.add(it.Name, tbl[tag]*qty)
				}
			}
		}
		for _, tag := range it.Matches {
			if traits.Contains(skillTraits, tag) {
				res.add(it.Name, 1)
			}
		}
	}

	return res
}
