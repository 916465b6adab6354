// Package campaign defines the persisted campaign snapshot: setting card,
// character sheet, inventory and rolling story summary.
package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

// Campaign is the document snapshot of a campaign.
type Campaign struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	Theme        string           `json:"theme,omitempty"`
	Setting      string           `json:"setting,omitempty"`
	Premise      string           `json:"premise,omitempty"`
	PC           character.PC     `json:"pc"`
	Inventory    []character.Item `json:"inventory"`
	StorySummary string           `json:"storySummary,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// New creates a campaign with a fresh ID and an empty sheet.
func New(title string, pc character.PC) *Campaign {
	now := time.Now().UTC()
	c := &Campaign{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		PC:        pc,
		Inventory: []character.Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.PC.EnsureDoAnything()
	if c.PC.Statuses == nil {
		c.PC.Statuses = []string{}
	}
	return c
}

// Validate checks the fields a caller must supply.
func (c *Campaign) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("campaign id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("campaign title is required")
	}
	return nil
}

// Card is the setting summary shared with the narrative service.
type Card struct {
	Title   string `json:"title"`
	Theme   string `json:"theme,omitempty"`
	Setting string `json:"setting,omitempty"`
	Premise string `json:"premise,omitempty"`
	PCName  string `json:"pc_name,omitempty"`
	PCDesc  string `json:"pc_description,omitempty"`
	PCBack  string `json:"pc_background,omitempty"`
}

func (c *Campaign) Card() Card {
	return Card{
		Title:   c.Title,
		Theme:   c.Theme,
		Setting: c.Setting,
		Premise: c.Premise,
		PCName:  c.PC.Name,
		PCDesc:  c.PC.Description,
		PCBack:  c.PC.Background,
	}
}

// StateSummary is the compact sheet shared with the narrative service.
type StateSummary struct {
	Name      string   `json:"name"`
	Wounds    int      `json:"wounds"`
	Luck      int      `json:"luck"`
	XP        int      `json:"xp"`
	Statuses  []string `json:"statuses"`
	Skills    []string `json:"skills"`
	Inventory []string `json:"inventory"`
}

// Summary renders the sheet, e.g. skills as "Athletics L2 [Athletics, Climb]".
func (c *Campaign) Summary() StateSummary {
	s := StateSummary{
		Name:      c.PC.Name,
		Wounds:    c.PC.Wounds,
		Luck:      c.PC.Luck,
		XP:        c.PC.XP,
		Statuses:  append([]string{}, c.PC.Statuses...),
		Skills:    make([]string, 0, len(c.PC.Skills)),
		Inventory: make([]string, 0, len(c.Inventory)),
	}
	for _, sk := range c.PC.Skills {
		s.Skills = append(s.Skills, fmt.Sprintf("%s L%d [%s]", sk.Name, sk.Level, traits.Labels(sk.Traits)))
	}
	for _, it := range c.Inventory {
		s.Inventory = append(s.Inventory, fmt.Sprintf("%s x%d [%s]", it.Name, it.Qty, traits.Labels(it.Matches)))
	}
	return s
}
