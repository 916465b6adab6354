package traits

import (
	"errors"
	"reflect"
	"testing"
)

func TestVocabularySize(t *testing.T) {
	if len(Vocabulary) != 35 {
		t.Errorf("Expected 35 traits, got %d", len(Vocabulary))
	}
	for _, v := range Vocabulary {
		if !IsAllowed(v) {
			t.Errorf("Expected %q to be allowed", v)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		max      int
		expected []string
	}{
		{"lowercases", []string{"Athletics"}, 2, []string{"athletics"}},
		{"drops unknown", []string{"laser", "Tech"}, 2, []string{"tech"}},
		{"dedupes", []string{"tech", "TECH", "Logic"}, 2, []string{"tech", "logic"}},
		{"caps", []string{"aim", "climb", "swim"}, 2, []string{"aim", "climb"}},
		{"empty", nil, 2, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input, tt.max)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Sanitize(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateStrict(t *testing.T) {
	got, err := ValidateStrict([]string{"Stealth", "agility"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"stealth", "agility"}) {
		t.Errorf("unexpected traits %v", got)
	}

	invalid := [][]string{
		nil,
		{"stealth", "agility", "aim"},
		{"stealth", "hacking"},
	}
	for _, in := range invalid {
		if _, err := ValidateStrict(in); !errors.Is(err, ErrInvalidTrait) {
			t.Errorf("ValidateStrict(%v) expected ErrInvalidTrait, got %v", in, err)
		}
	}
}

func TestUnionAndLabels(t *testing.T) {
	got := Union([]string{"tech"}, []string{"Tech", "logic", "aim"})
	if !reflect.DeepEqual(got, []string{"tech", "logic"}) {
		t.Errorf("Union = %v", got)
	}
	if Labels([]string{"tech", "logic"}) != "Tech, Logic" {
		t.Errorf("Labels = %q", Labels([]string{"tech", "logic"}))
	}
	if !Contains([]string{"tech"}, "TECH") {
		t.Error("Expected Contains to ignore case")
	}
}
