// Package directive parses narrator replies: a one-line JSON out-of-character
// directive, a blank line, then narrative prose.
package directive

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/loot"
)

// FormatError is returned when the first line of a reply is not a JSON
// directive. Callers should treat it as a recoverable turn failure.
type FormatError struct {
	Line string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed directive line: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// InventoryProposal is the narrator's loot offer.
type InventoryProposal struct {
	Add []loot.Candidate `json:"add"`
}

// OOC is the out-of-character directive.
type OOC struct {
	NeedRoll          bool               `json:"need_roll"`
	Skill             string             `json:"skill,omitempty"`
	DieTier           Int                `json:"dieTier,omitempty"`
	Difficulty        Int                `json:"difficulty,omitempty"`
	Note              string             `json:"note,omitempty"`
	Prompt            string             `json:"prompt,omitempty"`
	InventoryProposal *InventoryProposal `json:"inventory_proposal,omitempty"`
	InventoryCamel    *InventoryProposal `json:"inventoryProposal,omitempty"`
}

// Reply is a successfully parsed narrator reply.
type Reply struct {
	OOC       OOC
	Narrative string
	Raw       string
}

// Proposal returns the inventory proposal carried by the reply, looking in
// the directive first and then at the top level of the first line.
func (r *Reply) Proposal() *InventoryProposal {
	return r.OOC.proposal()
}

func (o *OOC) proposal() *InventoryProposal {
	if o.InventoryProposal != nil {
		return o.InventoryProposal
	}
	return o.InventoryCamel
}

type firstLine struct {
	OOC               *OOC               `json:"ooc"`
	InventoryProposal *InventoryProposal `json:"inventory_proposal"`
	InventoryCamel    *InventoryProposal `json:"inventoryProposal"`
}

var narrativePrefix = regexp.MustCompile(`^\s*NARRATIVE:\s*`)

// ErrMissingOOC is wrapped in a FormatError when the first line is JSON but
// carries no "ooc" object.
var ErrMissingOOC = errors.New(`directive has no "ooc" object`)

// Parse splits a reply into its directive and narrative. A first line that
// is not a JSON object with an "ooc" object yields a *FormatError. A
// top-level inventory proposal is accepted next to "ooc".
func Parse(text string) (*Reply, error) {
	text = strings.TrimLeft(text, "\r\n")
	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimRight(first, "\r")

	var fl firstLine
	if err := json.Unmarshal([]byte(first), &fl); err != nil {
		return nil, &FormatError{Line: first, Err: err}
	}

	if fl.OOC == nil {
		return nil, &FormatError{Line: first, Err: ErrMissingOOC}
	}

	reply := &Reply{Raw: text, OOC: *fl.OOC}
	if reply.OOC.proposal() == nil {
		if fl.InventoryProposal != nil {
			reply.OOC.InventoryProposal = fl.InventoryProposal
		} else if fl.InventoryCamel != nil {
			reply.OOC.InventoryProposal = fl.InventoryCamel
		}
	}

	rest = strings.ReplaceAll(rest, "\r\n", "\n")
	reply.Narrative = strings.TrimSpace(narrativePrefix.ReplaceAllString(rest, ""))
	return reply, nil
}

// Int decodes a JSON number or a numeric string.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*i = Int(f)
	return nil
}

var (
	fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")
	fenced     = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractFirstJSONObject strips code fences and returns the first balanced
// {...} object in s, or "" when there is none.
func ExtractFirstJSONObject(s string) string {
	s = fencedJSON.ReplaceAllString(s, "$1")
	s = fenced.ReplaceAllString(s, "$1")

	depth, start := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
