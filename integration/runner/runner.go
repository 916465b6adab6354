package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/session"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running tabletop-session API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// actionResponse mirrors the body every campaign action returns.
type actionResponse struct {
	State  session.State   `json:"state"`
	Events []session.Event `json:"events"`
	Error  string          `json:"error"`
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates the suite's campaign and plays every step against it
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	campaignID, err := r.createCampaign(ctx, suite.Campaign)
	if err != nil {
		result.Error = fmt.Errorf("failed to create campaign: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.CampaignID = campaignID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.executeStep(ctx, campaignID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// createCampaign posts the seed and returns the new campaign's ID
func (r *Runner) createCampaign(ctx context.Context, seed SeedCampaign) (uuid.UUID, error) {
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := r.doJSON(ctx, http.MethodPost, "/v1/campaigns", seed, &created)
	if err != nil {
		return uuid.Nil, err
	}
	if status != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create campaign returned %d", status)
	}
	return created.ID, nil
}

// executeStep posts one action, then checks the response and the session view
func (r *Runner) executeStep(ctx context.Context, campaignID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	action, body := stepRequest(step)
	var resp actionResponse
	status, err := r.doJSON(stepCtx, http.MethodPost, "/v1/campaigns/"+campaignID.String()+"/"+action, body, &resp)
	result.StatusCode = status
	if err != nil {
		result.Error = fmt.Errorf("failed to post %s: %w", action, err)
		result.Duration = time.Since(start)
		return result
	}
	result.ResponseText = eventText(resp.Events)

	view, err := r.getView(stepCtx, campaignID)
	if err != nil {
		result.Error = fmt.Errorf("failed to get session view: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := r.checkExpectations(step.Expectations, status, resp.Events, view, result.ResponseText); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// stepRequest resolves the route and body for a step. A bare user prompt
// is player input.
func stepRequest(step TestStep) (string, any) {
	action := step.Action
	if action == "" {
		action = ActionInput
	}
	if action == ActionInput && step.UserPrompt != "" {
		return action, map[string]any{"message": step.UserPrompt}
	}
	if step.Body == nil {
		return action, nil
	}
	return action, step.Body
}

func eventText(events []session.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Text)
	}
	return strings.Join(lines, "\n")
}

// getView retrieves the current session view
func (r *Runner) getView(ctx context.Context, campaignID uuid.UUID) (*session.View, error) {
	var view session.View
	status, err := r.doJSON(ctx, http.MethodGet, "/v1/campaigns/"+campaignID.String(), nil, &view)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get campaign returned %d", status)
	}
	return &view, nil
}

// doJSON sends body as JSON and decodes the response into out, whatever the
// status code. The status is returned for the caller to judge.
func (r *Runner) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute %s request: %w", method, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("Warning: failed to close response body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
		}
	}
	return resp.StatusCode, nil
}

// checkExpectations validates the test expectations against the response and view
func (r *Runner) checkExpectations(exp Expectations, status int, events []session.Event, view *session.View, responseText string) error {
	wantStatus := http.StatusOK
	if exp.Status != nil {
		wantStatus = *exp.Status
	}
	if status != wantStatus {
		return fmt.Errorf("expected status %d, got %d", wantStatus, status)
	}

	if exp.State != nil && view.State != *exp.State {
		return fmt.Errorf("expected state %s, got %s", *exp.State, view.State)
	}

	if exp.Luck != nil && view.PC.Luck != *exp.Luck {
		return fmt.Errorf("expected luck %d, got %d", *exp.Luck, view.PC.Luck)
	}
	if exp.XP != nil && view.PC.XP != *exp.XP {
		return fmt.Errorf("expected xp %d, got %d", *exp.XP, view.PC.XP)
	}
	if exp.Wounds != nil && view.PC.Wounds != *exp.Wounds {
		return fmt.Errorf("expected wounds %d, got %d", *exp.Wounds, view.PC.Wounds)
	}

	for name, want := range exp.SkillLevels {
		found := false
		for _, s := range view.PC.Skills {
			if strings.EqualFold(s.Name, name) {
				found = true
				if s.Level != want {
					return fmt.Errorf("expected skill %s at level %d, got %d", name, want, s.Level)
				}
			}
		}
		if !found {
			return fmt.Errorf("expected skill %s to exist, but it doesn't", name)
		}
	}

	// Full inventory check (order independent)
	if exp.Inventory != nil {
		actual := make(map[string]int, len(view.Inventory))
		for _, item := range view.Inventory {
			actual[strings.ToLower(item.Name)] = item.Qty
		}
		for name, qty := range exp.Inventory {
			got, ok := actual[strings.ToLower(name)]
			if !ok {
				return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", name, view.Inventory)
			}
			if got != qty {
				return fmt.Errorf("expected %d of '%s', got %d", qty, name, got)
			}
		}
		if len(actual) != len(exp.Inventory) {
			return fmt.Errorf("inventory has %d entries, expected %d. Actual: %v", len(actual), len(exp.Inventory), view.Inventory)
		}
	}

	for _, kind := range exp.EventKinds {
		found := false
		for _, e := range events {
			if e.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expected a %s event, but none was returned", kind)
		}
	}

	// Response content checks
	lowerResponse := strings.ToLower(responseText)
	for _, expectedText := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}
	if exp.ResponseMaxLength != nil && len(responseText) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(responseText))
	}

	return nil
}
