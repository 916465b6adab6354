package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <rules.json|rules.yaml>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &RulesValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

var snakeCase = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// RulesValidator checks a rules file more strictly than rules.Load: unknown
// fields are rejected and every table tag must be in the trait vocabulary.
type RulesValidator struct {
	errors []string
}

func (v *RulesValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(baseName))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("rules file must have a .json, .yaml or .yml extension: %s", baseName)
	}
	if !snakeCase.MatchString(strings.TrimSuffix(baseName, filepath.Ext(baseName))) {
		return fmt.Errorf("rules filename '%s' must be lowercase snake_case (e.g., gritty_rules.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	r := rules.Default()
	if ext == ".json" {
		if !json.Valid(data) {
			return fmt.Errorf("file %s contains invalid JSON", filename)
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(r); err != nil {
			return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(r); err != nil {
			return fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
		}
	}

	v.validateRules(r)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *RulesValidator) validateRules(r *rules.Rules) {
	if err := r.Validate(); err != nil {
		v.errors = append(v.errors, err.Error())
	}

	for lvl := rules.MinLevel; lvl <= rules.MaxLevel; lvl++ {
		if n, ok := r.DiceByLevel[lvl]; ok && (n < 1 || n > 6) {
			v.errors = append(v.errors, fmt.Sprintf("dice_by_level[%d] must be between 1 and 6, got %d", lvl, n))
		}
	}
	for lvl := range r.DiceByLevel {
		if lvl < rules.MinLevel || lvl > rules.MaxLevel {
			v.errors = append(v.errors, fmt.Sprintf("dice_by_level has level %d outside %d..%d", lvl, rules.MinLevel, rules.MaxLevel))
		}
	}

	for i, step := range r.DifficultyScale {
		if strings.TrimSpace(step.Label) == "" {
			v.errors = append(v.errors, fmt.Sprintf("difficulty_scale[%d] needs a label", i))
		}
		if step.DC < 1 {
			v.errors = append(v.errors, fmt.Sprintf("difficulty_scale[%d] dc must be >= 1, got %d", i, step.DC))
		}
	}

	v.validateTables("statuses", r.Statuses)
	v.validateTables("items", r.Items)
}

func (v *RulesValidator) validateTables(kind string, tables map[string]rules.Table) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			v.errors = append(v.errors, fmt.Sprintf("%s has an entry with an empty name", kind))
		}
		for _, tag := range tables[name].SortedTags() {
			if !traits.IsAllowed(tag) {
				v.errors = append(v.errors, fmt.Sprintf("%s[%q] uses unknown trait %q", kind, name, tag))
			}
		}
	}
}
