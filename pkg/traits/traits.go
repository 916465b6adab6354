// Package traits holds the closed vocabulary of tags shared by skills,
// items and rule tables.
package traits

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxPerEntry is the most tags a skill or item may carry.
const MaxPerEntry = 2

var ErrInvalidTrait = errors.New("invalid trait")

// Vocabulary lists every allowed tag in display form.
var Vocabulary = []string{
	"Acrobatics", "Agility", "Aim", "Athletics", "Charm", "Climb", "Combat",
	"Constitution", "Crafting", "Deception", "Endurance", "Exploration",
	"Explosive", "Flashy", "Focus", "Improv", "Insight", "Intimidate", "Logic",
	"Loud", "Magic", "Memory", "Occult", "Perception", "Performance",
	"Persuasion", "Reflex", "Religion", "Social", "Stealth", "Survival", "Swim",
	"Tactics", "Tech", "Violent",
}

var allowed = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Vocabulary))
	for _, t := range Vocabulary {
		m[strings.ToLower(t)] = struct{}{}
	}
	return m
}()

var titleCaser = cases.Title(language.English)

// Normalize lowercases and trims a tag.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// IsAllowed reports whether tag is in the vocabulary, ignoring case.
func IsAllowed(tag string) bool {
	_, ok := allowed[Normalize(tag)]
	return ok
}

// Sanitize lowercases tags, drops unknown ones and duplicates, and keeps
// at most max entries in their original order.
func Sanitize(tags []string, max int) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if !IsAllowed(n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if len(out) >= max {
			break
		}
	}
	return out
}

// ValidateStrict checks a tag list used in strict generation: 1 to
// MaxPerEntry tags, all from the vocabulary. It returns the normalized list.
func ValidateStrict(tags []string) ([]string, error) {
	if len(tags) < 1 || len(tags) > MaxPerEntry {
		return nil, fmt.Errorf("%w: expected 1-%d traits, got %d", ErrInvalidTrait, MaxPerEntry, len(tags))
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if !IsAllowed(n) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrait, t)
		}
		out = append(out, n)
	}
	return out, nil
}

// Union merges b into a, sanitized and capped at MaxPerEntry.
func Union(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return Sanitize(merged, MaxPerEntry)
}

// Contains reports whether tags holds tag, ignoring case.
func Contains(tags []string, tag string) bool {
	n := Normalize(tag)
	for _, t := range tags {
		if Normalize(t) == n {
			return true
		}
	}
	return false
}

// Label returns the display form of a tag ("tech" -> "Tech").
func Label(tag string) string {
	return titleCaser.String(Normalize(tag))
}

// Labels formats tags for display, e.g. "Athletics, Climb".
func Labels(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = Label(t)
	}
	return strings.Join(parts, ", ")
}
