// Package rules holds the tunable rule tables for a session: dice per
// skill level, XP costs, luck, wounds and the status/item modifier tables.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MinLevel = 1
	MaxLevel = 4

	// TestDifficulty is the fixed DC used while test rolling is on.
	TestDifficulty = 14

	minDice = 1
	maxDice = 6
)

// Tier is the classified outcome of a check.
type Tier string

const (
	TierFail    Tier = "fail"
	TierSuccess Tier = "success"
	TierCrit    Tier = "crit"
)

// Luck configures the reroll currency.
type Luck struct {
	Start  int `json:"start" yaml:"start"`
	XPCost int `json:"xp_cost" yaml:"xp_cost"`
}

// Wounds configures the wound track and its penalty.
type Wounds struct {
	Levels           int `json:"levels" yaml:"levels"`
	PenaltyAtOrAbove int `json:"penalty_at_or_above" yaml:"penalty_at_or_above"`
	PenaltyValue     int `json:"penalty_value" yaml:"penalty_value"`
}

// DifficultyStep is an optional named DC hint passed to the narrator.
type DifficultyStep struct {
	Label string `json:"label" yaml:"label"`
	DC    int    `json:"dc" yaml:"dc"`
}

// Table maps a trait tag to a modifier value.
type Table map[string]int

// Rules is the explicit configuration object passed to every component
// that needs a rule value.
type Rules struct {
	CritMargin       int              `json:"crit_margin" yaml:"crit_margin"`
	DiceByLevel      map[int]int      `json:"dice_by_level" yaml:"dice_by_level"`
	XPOnFail         int              `json:"xp_on_fail" yaml:"xp_on_fail"`
	XPCostNext       map[int]int      `json:"xp_cost_next" yaml:"xp_cost_next"`
	AllSixesExplodes bool             `json:"all_sixes_explodes" yaml:"all_sixes_explodes"`
	DifficultyScale  []DifficultyStep `json:"difficulty_scale" yaml:"difficulty_scale"`
	Luck             Luck             `json:"luck" yaml:"luck"`
	Wounds           Wounds           `json:"wounds" yaml:"wounds"`
	Statuses         map[string]Table `json:"statuses" yaml:"statuses"`
	Items            map[string]Table `json:"items" yaml:"items"`
}

// Default returns the built-in rule tables.
func Default() *Rules {
	return &Rules{
		CritMargin:       10,
		DiceByLevel:      map[int]int{1: 2, 2: 3, 3: 4, 4: 5},
		XPOnFail:         1,
		XPCostNext:       map[int]int{1: 2, 2: 3, 3: 4, 4: 5},
		AllSixesExplodes: true,
		DifficultyScale:  []DifficultyStep{},
		Luck:             Luck{Start: 1, XPCost: 2},
		Wounds:           Wounds{Levels: 4, PenaltyAtOrAbove: 2, PenaltyValue: -3},
		Statuses:         map[string]Table{},
		Items:            map[string]Table{},
	}
}

// Load reads a JSON or YAML rules file. Values present in the file
// override the defaults; absent ones keep them. dice_by_level and
// xp_cost_next replace the default maps outright, so levels a file leaves
// out use the level+1 fallback. A missing or unreadable file is an error so
// the caller can decide whether to fall back.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	r := Default()
	r.DiceByLevel, r.XPCostNext = nil, nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, r)
	default:
		err = json.Unmarshal(data, r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	defaults := Default()
	if r.DiceByLevel == nil {
		r.DiceByLevel = defaults.DiceByLevel
	}
	if r.XPCostNext == nil {
		r.XPCostNext = defaults.XPCostNext
	}

	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// normalize lowercases table keys so lookups by status or item name are
// case-insensitive.
func (r *Rules) normalize() {
	lower := func(in map[string]Table) map[string]Table {
		out := make(map[string]Table, len(in))
		for name, tbl := range in {
			t := make(Table, len(tbl))
			for tag, v := range tbl {
				t[strings.ToLower(tag)] = v
			}
			out[strings.ToLower(strings.TrimSpace(name))] = t
		}
		return out
	}
	r.Statuses = lower(r.Statuses)
	r.Items = lower(r.Items)
}

// Validate checks the rule tables for values that would break a session.
func (r *Rules) Validate() error {
	var errs []error
	if r.CritMargin < 0 {
		errs = append(errs, fmt.Errorf("crit_margin must be >= 0, got %d", r.CritMargin))
	}
	if r.XPOnFail < 0 {
		errs = append(errs, fmt.Errorf("xp_on_fail must be >= 0, got %d", r.XPOnFail))
	}
	for lvl := MinLevel; lvl <= MaxLevel; lvl++ {
		if c, ok := r.XPCostNext[lvl]; ok && c < 0 {
			errs = append(errs, fmt.Errorf("xp_cost_next[%d] must be >= 0, got %d", lvl, c))
		}
	}
	if r.Luck.Start < 0 {
		errs = append(errs, fmt.Errorf("luck.start must be >= 0, got %d", r.Luck.Start))
	}
	if r.Luck.XPCost < 1 {
		errs = append(errs, fmt.Errorf("luck.xp_cost must be >= 1, got %d", r.Luck.XPCost))
	}
	if r.Wounds.Levels < 1 {
		errs = append(errs, fmt.Errorf("wounds.levels must be >= 1, got %d", r.Wounds.Levels))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %w", errors.Join(errs...))
	}
	return nil
}

// DiceForLevel returns the pool size for a skill level, clamped to 1..6.
func (r *Rules) DiceForLevel(level int) int {
	n, ok := r.DiceByLevel[level]
	if !ok {
		n = level + 1
	}
	return max(minDice, min(maxDice, n))
}

// XPCostToNext returns the XP needed to raise a skill from level.
func (r *Rules) XPCostToNext(level int) int {
	if c, ok := r.XPCostNext[level]; ok {
		return c
	}
	if level >= MaxLevel {
		return 5
	}
	return level + 1
}

// SpecializationCost is the XP cost of branching a level 4 skill.
func (r *Rules) SpecializationCost() int {
	return r.XPCostToNext(MaxLevel)
}

// TierFor classifies an adjusted total against a DC.
func (r *Rules) TierFor(totalAdj, dc int) Tier {
	switch {
	case totalAdj >= dc+r.CritMargin:
		return TierCrit
	case totalAdj >= dc:
		return TierSuccess
	default:
		return TierFail
	}
}

// SortedTags returns a table's tags in sorted order.
func (t Table) SortedTags() []string {
	tags := make([]string, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Digest is the subset of rules shared with the narrative service.
type Digest struct {
	DiceByLevel     map[int]int      `json:"dice_by_level"`
	CritMargin      int              `json:"crit_margin"`
	DifficultyScale []DifficultyStep `json:"difficulty_scale"`
}

// Digest returns the narrator-facing rules summary.
func (r *Rules) Digest() Digest {
	scale := r.DifficultyScale
	if scale == nil {
		scale = []DifficultyStep{}
	}
	return Digest{
		DiceByLevel:     r.DiceByLevel,
		CritMargin:      r.CritMargin,
		DifficultyScale: scale,
	}
}
