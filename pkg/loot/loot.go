// Package loot negotiates narrator item proposals: at most three items,
// accepted or declined as a whole.
package loot

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
)

// MaxItems is the most items a single proposal may carry.
const MaxItems = 3

// Candidate is one proposed item as sent by the narrator.
type Candidate struct {
	Name    string   `json:"name"`
	Qty     int      `json:"qty"`
	Matches []string `json:"matches"`
	Why     string   `json:"why,omitempty"`
}

// Proposal is an offer awaiting a single accept or decline.
type Proposal struct {
	Items []Candidate `json:"items"`
}

// NewProposal keeps the first MaxItems candidates, normalizing names,
// quantities and matches. Candidates without a name are dropped. It
// returns nil when nothing usable remains.
func NewProposal(candidates []Candidate) *Proposal {
	if len(candidates) > MaxItems {
		candidates = candidates[:MaxItems]
	}
	p := &Proposal{Items: make([]Candidate, 0, len(candidates))}
	for _, c := range candidates {
		it, ok := character.NormalizeItem(character.Item{Name: c.Name, Qty: c.Qty, Matches: c.Matches})
		if !ok {
			continue
		}
		p.Items = append(p.Items, Candidate{
			Name:    it.Name,
			Qty:     it.Qty,
			Matches: it.Matches,
			Why:     strings.TrimSpace(c.Why),
		})
	}
	if len(p.Items) == 0 {
		return nil
	}
	return p
}

// Accept merges every proposed item into inv and returns the new
// inventory and how many entries were added or merged.
func (p *Proposal) Accept(inv []character.Item) ([]character.Item, int) {
	added := 0
	for _, c := range p.Items {
		var ok bool
		inv, ok = character.MergeItem(inv, character.Item{Name: c.Name, Qty: c.Qty, Matches: c.Matches})
		if ok {
			added++
		}
	}
	return inv, added
}

// Summary renders the offer for the transcript.
func (p *Proposal) Summary() string {
	parts := make([]string, len(p.Items))
	for i, c := range p.Items {
		s := fmt.Sprintf("%s x%d", c.Name, c.Qty)
		if len(c.Matches) > 0 {
			s += " [" + strings.Join(c.Matches, ", ") + "]"
		}
		if c.Why != "" {
			s += " (" + c.Why + ")"
		}
		parts[i] = s
	}
	return "Loot offered: " + strings.Join(parts, "; ")
}

const (
	MsgAccepted = "Loot accepted. Inventory updated."
	MsgNothing  = "Nothing to add."
	MsgDeclined = "Loot declined."
)
