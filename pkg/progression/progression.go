// Package progression spends and awards experience: leveling skills,
// branching specializations and creating skills from Do Anything successes.
package progression

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

var (
	ErrSkillNotFound    = errors.New("skill not found")
	ErrDoAnythingLocked = errors.New(`"Do Anything" cannot be leveled or specialized`)
	ErrMaxLevel         = errors.New("skill is already at max level")
	ErrNotMaxLevel      = errors.New("skill must be level 4 to specialize")
	ErrInsufficientXP   = errors.New("insufficient XP")
	ErrDuplicateSkill   = errors.New("skill already exists")
	ErrEmptySkillName   = errors.New("skill name is required")
	ErrNoValidTraits    = errors.New("no valid traits selected")
)

var specSuffix = regexp.MustCompile(`\s*\(Spec.*\)$`)

// SpecializationName returns the default name for a specialization of
// parent, e.g. "Athletics: Specialization".
func SpecializationName(parent string) string {
	return BaseName(parent) + ": Specialization"
}

// BaseName strips a trailing "(Spec...)" marker from a skill name.
func BaseName(name string) string {
	return specSuffix.ReplaceAllString(name, "")
}

func lookup(pc *character.PC, name string) (*character.Skill, error) {
	s := pc.FindSkill(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	if s.IsDoAnything() {
		return nil, ErrDoAnythingLocked
	}
	return s, nil
}

// LevelUp spends XP to raise a skill one level. Nothing changes on error.
func LevelUp(pc *character.PC, name string, r *rules.Rules) (*character.Skill, error) {
	s, err := lookup(pc, name)
	if err != nil {
		return nil, err
	}
	if s.Level >= rules.MaxLevel {
		return nil, ErrMaxLevel
	}
	cost := r.XPCostToNext(s.Level)
	if pc.XP < cost {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientXP, cost, pc.XP)
	}
	pc.XP -= cost
	s.Level++
	return s, nil
}

// FreeLevelResult describes the all-sixes bonus outcome.
type FreeLevelResult struct {
	Skill               string
	NewLevel            int
	NeedsSpecialization bool
}

// FreeLevelUp grants the all-sixes bonus without spending XP. A skill at
// level 4 is not raised; the caller is told to open a specialization.
func FreeLevelUp(pc *character.PC, name string) (FreeLevelResult, error) {
	s, err := lookup(pc, name)
	if err != nil {
		return FreeLevelResult{}, err
	}
	if s.Level >= rules.MaxLevel {
		return FreeLevelResult{Skill: s.Name, NewLevel: s.Level, NeedsSpecialization: true}, nil
	}
	s.Level++
	return FreeLevelResult{Skill: s.Name, NewLevel: s.Level}, nil
}

// Specialize spends XP to add a level 1 branch of a level 4 skill. The
// branch inherits the parent's traits; the parent is unchanged. An empty
// specName uses SpecializationName.
func Specialize(pc *character.PC, parent, specName string, r *rules.Rules) (*character.Skill, error) {
	p, specName, err := checkSpecialization(pc, parent, specName)
	if err != nil {
		return nil, err
	}
	cost := r.SpecializationCost()
	if pc.XP < cost {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientXP, cost, pc.XP)
	}
	pc.XP -= cost
	return addSpecialization(pc, p, specName), nil
}

// GrantSpecialization adds a specialization without spending XP, as
// awarded by an all-sixes roll on a level 4 skill.
func GrantSpecialization(pc *character.PC, parent, specName string) (*character.Skill, error) {
	p, specName, err := checkSpecialization(pc, parent, specName)
	if err != nil {
		return nil, err
	}
	return addSpecialization(pc, p, specName), nil
}

// checkSpecialization resolves the parent and the branch name, refusing
// before any cost is considered.
func checkSpecialization(pc *character.PC, parent, specName string) (*character.Skill, string, error) {
	p, err := lookup(pc, parent)
	if err != nil {
		return nil, "", err
	}
	if p.Level < rules.MaxLevel {
		return nil, "", ErrNotMaxLevel
	}
	specName = strings.TrimSpace(specName)
	if specName == "" {
		specName = SpecializationName(p.Name)
	}
	if pc.HasSkill(specName) {
		return nil, "", fmt.Errorf("%w: %s", ErrDuplicateSkill, specName)
	}
	return p, specName, nil
}

func addSpecialization(pc *character.PC, parent *character.Skill, specName string) *character.Skill {
	inherited := append([]string(nil), parent.Traits...)
	pc.Skills = append(pc.Skills, character.Skill{Name: specName, Level: 1, Traits: inherited})
	return &pc.Skills[len(pc.Skills)-1]
}

// CreateSkill adds a level 1 skill named by the player after a Do Anything
// success. Traits are sanitized against the vocabulary; at least one must
// survive.
func CreateSkill(pc *character.PC, name string, tags []string) (*character.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySkillName
	}
	if pc.HasSkill(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSkill, name)
	}
	clean := traits.Sanitize(tags, traits.MaxPerEntry)
	if len(clean) == 0 {
		return nil, ErrNoValidTraits
	}
	pc.Skills = append(pc.Skills, character.Skill{Name: name, Level: 1, Traits: clean})
	return &pc.Skills[len(pc.Skills)-1], nil
}

// BuyLuck converts XP into one point of luck.
func BuyLuck(pc *character.PC, r *rules.Rules) error {
	if pc.XP < r.Luck.XPCost {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientXP, r.Luck.XPCost, pc.XP)
	}
	pc.XP -= r.Luck.XPCost
	pc.Luck++
	return nil
}
