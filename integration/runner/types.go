package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/session"
)

// Step actions map onto the campaign API routes.
const (
	ActionStart      = "start"
	ActionInput      = "input"
	ActionRoll       = "roll"
	ActionReroll     = "reroll"
	ActionLoot       = "loot"
	ActionDecision   = "decision"
	ActionLevelUp    = "levelup"
	ActionSpecialize = "specialize"
	ActionBuyLuck    = "buyluck"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name     string       `json:"name"`
	Campaign SeedCampaign `json:"campaign,omitempty"` // Used for regular tests
	Steps    []TestStep   `json:"steps,omitempty"`    // Used for regular tests
	Cases    []string     `json:"cases,omitempty"`    // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// SeedCampaign is posted to create the campaign a suite plays through.
type SeedCampaign struct {
	Title     string           `json:"title"`
	Theme     string           `json:"theme,omitempty"`
	Setting   string           `json:"setting,omitempty"`
	Premise   string           `json:"premise,omitempty"`
	PC        character.PC     `json:"pc"`
	Inventory []character.Item `json:"inventory,omitempty"`
}

// TestStep defines a single test interaction and its expected outcomes.
// A step with only user_prompt set is sent as player input.
type TestStep struct {
	Name         string         `json:"name,omitempty"`
	Action       string         `json:"action,omitempty"`
	UserPrompt   string         `json:"user_prompt,omitempty"`
	Body         map[string]any `json:"body,omitempty"`
	Expectations Expectations   `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// HTTP status of the action call; 200 when unset
	Status *int `json:"status,omitempty"`

	// Session view after the step
	State       *session.State      `json:"state,omitempty"`
	Luck        *int                `json:"luck,omitempty"`
	XP          *int                `json:"xp,omitempty"`
	Wounds      *int                `json:"wounds,omitempty"`
	SkillLevels map[string]int      `json:"skill_levels,omitempty"`
	Inventory   map[string]int      `json:"inventory,omitempty"` // Full inventory, name to qty
	EventKinds  []session.EventKind `json:"event_kinds,omitempty"`

	// Response Analysis, over the text of every returned event
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	StatusCode   int
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job        TestJob
	Results    []TestResult
	Error      error
	Duration   time.Duration
	CampaignID uuid.UUID
}
