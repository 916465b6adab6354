package progression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
)

func newPC(xp int) *character.PC {
	pc := &character.PC{
		XP: xp,
		Skills: []character.Skill{
			{Name: "Athletics", Level: 3, Traits: []string{"athletics", "climb"}},
			{Name: "Streetwise", Level: 4, Traits: []string{"social", "insight"}},
		},
	}
	pc.EnsureDoAnything()
	return pc
}

func TestLevelUp(t *testing.T) {
	r := rules.Default()

	pc := newPC(4)
	s, err := LevelUp(pc, "athletics", r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Level)
	assert.Equal(t, 0, pc.XP)

	pc = newPC(3)
	_, err = LevelUp(pc, "Athletics", r)
	assert.ErrorIs(t, err, ErrInsufficientXP)
	assert.Equal(t, 3, pc.FindSkill("Athletics").Level, "refused level up leaves level")
	assert.Equal(t, 3, pc.XP, "refused level up leaves XP")
}

func TestLevelUp_Refusals(t *testing.T) {
	r := rules.Default()
	pc := newPC(100)

	tests := []struct {
		skill string
		err   error
	}{
		{character.DoAnything, ErrDoAnythingLocked},
		{"Streetwise", ErrMaxLevel},
		{"Juggling", ErrSkillNotFound},
	}
	for _, tt := range tests {
		_, err := LevelUp(pc, tt.skill, r)
		if !errors.Is(err, tt.err) {
			t.Errorf("LevelUp(%s) error = %v, want %v", tt.skill, err, tt.err)
		}
	}
	assert.Equal(t, 100, pc.XP)
	assert.Equal(t, 1, pc.FindSkill(character.DoAnything).Level)
}

func TestFreeLevelUp(t *testing.T) {
	pc := newPC(0)

	res, err := FreeLevelUp(pc, "Athletics")
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewLevel)
	assert.False(t, res.NeedsSpecialization)
	assert.Equal(t, 0, pc.XP)

	res, err = FreeLevelUp(pc, "Streetwise")
	require.NoError(t, err)
	assert.True(t, res.NeedsSpecialization)
	assert.Equal(t, 4, pc.FindSkill("Streetwise").Level)

	_, err = FreeLevelUp(pc, character.DoAnything)
	assert.ErrorIs(t, err, ErrDoAnythingLocked)
}

func TestSpecialize(t *testing.T) {
	r := rules.Default()
	pc := newPC(5)

	s, err := Specialize(pc, "Streetwise", "", r)
	require.NoError(t, err)
	assert.Equal(t, "Streetwise: Specialization", s.Name)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, []string{"social", "insight"}, s.Traits)
	assert.Equal(t, 0, pc.XP)
	assert.Equal(t, 4, pc.FindSkill("Streetwise").Level, "parent unchanged")

	pc.XP = 10
	_, err = Specialize(pc, "Streetwise", "streetwise: specialization", r)
	assert.ErrorIs(t, err, ErrDuplicateSkill)
	assert.Equal(t, 10, pc.XP)

	_, err = Specialize(pc, "Athletics", "Athletics: Parkour", r)
	assert.ErrorIs(t, err, ErrNotMaxLevel)

	pc.XP = 4
	_, err = Specialize(pc, "Streetwise", "Streetwise: Fences", r)
	assert.ErrorIs(t, err, ErrInsufficientXP)
}

func TestSpecialize_RefusalsBeforeCost(t *testing.T) {
	r := rules.Default()
	pc := newPC(0)

	tests := []struct {
		skill string
		err   error
	}{
		{"Juggling", ErrSkillNotFound},
		{character.DoAnything, ErrDoAnythingLocked},
		{"Athletics", ErrNotMaxLevel},
		{"Streetwise", ErrInsufficientXP},
	}
	for _, tt := range tests {
		_, err := Specialize(pc, tt.skill, "", r)
		if !errors.Is(err, tt.err) {
			t.Errorf("Specialize(%s) error = %v, want %v", tt.skill, err, tt.err)
		}
	}
	assert.Len(t, pc.Skills, 3)
}

func TestSpecializationName(t *testing.T) {
	assert.Equal(t, "Athletics: Specialization", SpecializationName("Athletics"))
	assert.Equal(t, "Athletics: Specialization", SpecializationName("Athletics (Spec: Parkour)"))
}

func TestCreateSkill(t *testing.T) {
	pc := newPC(0)

	s, err := CreateSkill(pc, "Lockpicking", []string{"Stealth", "Tech", "Aim"})
	require.NoError(t, err)
	assert.Equal(t, []string{"stealth", "tech"}, s.Traits)
	assert.Equal(t, 1, s.Level)

	before := len(pc.Skills)
	_, err = CreateSkill(pc, "lockpicking", []string{"stealth"})
	assert.ErrorIs(t, err, ErrDuplicateSkill)
	assert.Len(t, pc.Skills, before, "duplicate leaves skills unchanged")

	_, err = CreateSkill(pc, "Hover", []string{"flying"})
	assert.ErrorIs(t, err, ErrNoValidTraits)

	_, err = CreateSkill(pc, "  ", []string{"aim"})
	assert.ErrorIs(t, err, ErrEmptySkillName)
}

func TestBuyLuck(t *testing.T) {
	r := rules.Default()
	pc := newPC(3)
	require.NoError(t, BuyLuck(pc, r))
	assert.Equal(t, 1, pc.Luck)
	assert.Equal(t, 1, pc.XP)
	assert.ErrorIs(t, BuyLuck(pc, r), ErrInsufficientXP)
}
