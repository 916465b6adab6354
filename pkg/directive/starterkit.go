package directive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

// StarterKitSize is the exact number of skills and items a kit carries.
const StarterKitSize = 3

var ErrInvalidStarterKit = errors.New("invalid starter kit")

// StarterKit is a strictly validated set of opening skills and items.
type StarterKit struct {
	Skills []character.Skill
	Items  []character.Item
}

type rawKit struct {
	Skills []struct {
		Name   string   `json:"name"`
		Traits []string `json:"traits"`
	} `json:"skills"`
	Items []struct {
		Name    string   `json:"name"`
		Qty     Int      `json:"qty"`
		Matches []string `json:"matches"`
	} `json:"items"`
}

// ParseStarterKit extracts the first JSON object from text and validates it
// as a starter kit. Any invalid entry voids the whole kit.
func ParseStarterKit(text string) (*StarterKit, error) {
	obj := ExtractFirstJSONObject(text)
	if obj == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidStarterKit)
	}
	var raw rawKit
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStarterKit, err)
	}
	if len(raw.Skills) < StarterKitSize || len(raw.Items) < StarterKitSize {
		return nil, fmt.Errorf("%w: expected %d skills and %d items, got %d and %d",
			ErrInvalidStarterKit, StarterKitSize, StarterKitSize, len(raw.Skills), len(raw.Items))
	}

	kit := &StarterKit{}
	for _, s := range raw.Skills[:StarterKitSize] {
		name := truncate(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: skill without a name", ErrInvalidStarterKit)
		}
		tags, err := traits.ValidateStrict(s.Traits)
		if err != nil {
			return nil, fmt.Errorf("%w: skill %q: %v", ErrInvalidStarterKit, name, err)
		}
		kit.Skills = append(kit.Skills, character.Skill{Name: name, Level: 1, Traits: tags})
	}
	for _, it := range raw.Items[:StarterKitSize] {
		name := truncate(it.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item without a name", ErrInvalidStarterKit)
		}
		if it.Qty < 1 {
			return nil, fmt.Errorf("%w: item %q has no quantity", ErrInvalidStarterKit, name)
		}
		tags, err := traits.ValidateStrict(it.Matches)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %v", ErrInvalidStarterKit, name, err)
		}
		kit.Items = append(kit.Items, character.Item{Name: name, Qty: int(it.Qty), Matches: tags})
	}
	return kit, nil
}

func truncate(name string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > character.MaxItemNameLength {
		name = string(r[:character.MaxItemNameLength])
	}
	return name
}
