// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// test.go - Built-in test battery.
//
// Command: test [--deps-only|--api-only|--examples] [--json]
// Aliases: selftest
//
// Test Categories:
//   local  Config, API key, profile, prompt assembly, ledger, session files
//   api    Non-streaming and streaming round trips against the API
//
// Exit Codes:
//   0   All tests passed or were skipped
//   1   One or more tests failed
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/seekrun/internal/conversation"
	"github.com/jeranaias/seekrun/internal/ledger"
	"github.com/jeranaias/seekrun/internal/util"
)

// apiTestPrompt is the prompt sent by the API round-trip tests.
const (
	apiTestPrompt    = "你好"
	apiTestMaxTokens = 50
)

// =============================================================================
// TEST STYLES
// =============================================================================

var (
	testPassStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	testFailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	testSkipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	testIDStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Bold(true)

	testDetailsStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Italic(true).
				PaddingLeft(4)
)

// =============================================================================
// TEST TYPES
// =============================================================================

// TestStatus represents the status of a test.
type TestStatus int

const (
	TestPassed TestStatus = iota
	TestFailed
	TestSkipped
)

// String returns the string representation of the test status.
func (s TestStatus) String() string {
	switch s {
	case TestPassed:
		return "PASS"
	case TestFailed:
		return "FAIL"
	case TestSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the styled status marker.
func (s TestStatus) Symbol() string {
	switch s {
	case TestPassed:
		return testPassStyle.Render("[PASS]")
	case TestFailed:
		return testFailStyle.Render("[FAIL]")
	case TestSkipped:
		return testSkipStyle.Render("[SKIP]")
	default:
		return "[????]"
	}
}

// MarshalJSON encodes the status as its name.
func (s TestStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name written by MarshalJSON.
func (s *TestStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, status := range []TestStatus{TestPassed, TestFailed, TestSkipped} {
		if status.String() == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown test status %q", name)
}

// TestResult represents the result of a single test.
type TestResult struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Status   TestStatus `json:"status"`
	Details  string     `json:"details,omitempty"`
	Duration int64      `json:"duration_ms"`
}

// TestSummary holds the overall test results.
type TestSummary struct {
	TotalTests  int           `json:"total_tests"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	TotalTimeMs int64         `json:"total_time_ms"`
	Results     []*TestResult `json:"results"`
}

// Test represents a single test case. Run reports a status and details;
// ID, name, category and timing are filled in by RunTests.
type Test struct {
	ID       string
	Name     string
	Category string
	Run      func(ctx context.Context, env *Env, args Args) (TestStatus, string)
}

const (
	CategoryLocal = "local"
	CategoryAPI   = "api"
)

// =============================================================================
// TEST REGISTRY
// =============================================================================

// allTests returns every test in run order.
func allTests() []*Test {
	return []*Test{
		{ID: "CFG-001", Name: "Configuration is valid", Category: CategoryLocal, Run: testConfigValid},
		{ID: "CFG-002", Name: "API key is configured", Category: CategoryLocal, Run: testAPIKeySet},
		{ID: "PRF-001", Name: "Prompt profile loads", Category: CategoryLocal, Run: testProfileLoads},
		{ID: "PRF-002", Name: "Prompt assembly", Category: CategoryLocal, Run: testPromptAssembly},
		{ID: "LED-001", Name: "Exchange ledger is writable", Category: CategoryLocal, Run: testLedger},
		{ID: "SES-001", Name: "Session files round trip", Category: CategoryLocal, Run: testSessionRoundTrip},
		{ID: "API-001", Name: "Completion round trip", Category: CategoryAPI, Run: testAPIComplete},
		{ID: "API-002", Name: "Streaming round trip", Category: CategoryAPI, Run: testAPIStream},
	}
}

// testsForScope returns the tests a scope runs.
func testsForScope(scope TestScope) []*Test {
	var category string
	switch scope {
	case ScopeDepsOnly:
		category = CategoryLocal
	case ScopeAPIOnly:
		category = CategoryAPI
	case ScopeAll:
		return allTests()
	default:
		return nil
	}

	var filtered []*Test
	for _, t := range allTests() {
		if t.Category == category {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// =============================================================================
// LOCAL TESTS
// =============================================================================

func testConfigValid(_ context.Context, env *Env, _ Args) (TestStatus, string) {
	if err := env.Config.Validate(); err != nil {
		return TestFailed, err.Error()
	}
	return TestPassed, fmt.Sprintf("model %s at %s", env.Config.API.Model, env.Config.API.BaseURL)
}

func testAPIKeySet(_ context.Context, env *Env, _ Args) (TestStatus, string) {
	if err := env.Config.RequireAPIKey(); err != nil {
		return TestFailed, err.Error()
	}
	return TestPassed, "API key " + env.Config.MaskedAPIKey()
}

func testProfileLoads(_ context.Context, env *Env, args Args) (TestStatus, string) {
	p, err := env.LoadProfile(args)
	if err != nil {
		return TestFailed, err.Error()
	}
	return TestPassed, fmt.Sprintf("profile %q from %s with %d examples", p.Name, p.Source, len(p.FewShotExamples))
}

func testPromptAssembly(_ context.Context, env *Env, args Args) (TestStatus, string) {
	p, err := env.LoadProfile(args)
	if err != nil {
		return TestSkipped, "profile unavailable"
	}
	state := p.NewState()
	state.AppendExchange("第一个问题", "第一个回答")
	prompt := state.BuildPrompt(apiTestPrompt)

	tpl := state.Template()
	checks := []struct {
		what string
		ok   bool
	}{
		{"system section", strings.HasPrefix(prompt, tpl.SystemHeader+"\n")},
		{"history section", strings.Contains(prompt, tpl.HistoryHeader+"\n"+tpl.UserLabel+"第一个问题")},
		{"open assistant turn", strings.HasSuffix(prompt, tpl.UserLabel+apiTestPrompt+"\n"+tpl.AssistantLabel)},
	}
	if len(p.FewShotExamples) > 0 {
		checks = append(checks, struct {
			what string
			ok   bool
		}{"examples section", strings.Contains(prompt, tpl.ExamplesIntro)})
	}
	for _, c := range checks {
		if !c.ok {
			return TestFailed, "assembled prompt is missing the " + c.what
		}
	}
	return TestPassed, fmt.Sprintf("%d characters", len([]rune(prompt)))
}

func testLedger(ctx context.Context, env *Env, _ Args) (TestStatus, string) {
	if !env.Config.Ledger.Enabled {
		return TestSkipped, "ledger disabled in config"
	}
	store, err := ledger.Open(env.Config.Ledger.Path)
	if err != nil {
		return TestFailed, err.Error()
	}
	defer store.Close()

	sum, err := store.Summary(ctx, "")
	if err != nil {
		return TestFailed, err.Error()
	}
	return TestPassed, fmt.Sprintf("%d exchanges recorded in %s", sum.Calls, store.Path())
}

func testSessionRoundTrip(_ context.Context, env *Env, _ Args) (TestStatus, string) {
	dir := env.Config.Chat.SessionDir
	if err := os.MkdirAll(dir, 0700); err != nil {
		return TestFailed, err.Error()
	}
	path := filepath.Join(dir, fmt.Sprintf(".selftest-%d.json", time.Now().UnixNano()))
	defer os.Remove(path)

	saved := conversation.NewState("selftest")
	saved.AppendExchange("ping", "pong")
	if err := saved.Save(path); err != nil {
		return TestFailed, err.Error()
	}

	loaded := conversation.NewState("")
	if err := loaded.Load(path); err != nil {
		return TestFailed, err.Error()
	}
	if loaded.SystemPrompt() != "selftest" || loaded.Len() != 2 {
		return TestFailed, "loaded session does not match the saved one"
	}
	return TestPassed, "saved and reloaded in " + dir
}

// =============================================================================
// API TESTS
// =============================================================================

func testAPIComplete(ctx context.Context, env *Env, args Args) (TestStatus, string) {
	if env.Config.RequireAPIKey() != nil {
		return TestSkipped, "no API key"
	}
	client, err := env.NewClient(args)
	if err != nil {
		return TestFailed, err.Error()
	}

	req := client.NewRequest(apiTestPrompt, false)
	req.MaxTokens = apiTestMaxTokens
	start := time.Now()
	reply, err := client.Complete(ctx, req)
	if err != nil {
		return TestFailed, err.Error()
	}
	return TestPassed, fmt.Sprintf("%s in %s: %s",
		client.Model(), time.Since(start).Round(time.Millisecond), util.Preview(reply, 50))
}

func testAPIStream(ctx context.Context, env *Env, args Args) (TestStatus, string) {
	if env.Config.RequireAPIKey() != nil {
		return TestSkipped, "no API key"
	}
	client, err := env.NewClient(args)
	if err != nil {
		return TestFailed, err.Error()
	}

	req := client.NewRequest(apiTestPrompt, true)
	req.MaxTokens = apiTestMaxTokens
	stream, err := client.Stream(ctx, req)
	if err != nil {
		return TestFailed, err.Error()
	}
	text, err := stream.Collect()
	if err != nil {
		return TestFailed, err.Error()
	}
	if stream.Count() == 0 {
		return TestFailed, "stream completed without any content"
	}
	details := fmt.Sprintf("%d fragments: %s", stream.Count(), util.Preview(text, 50))
	if n := stream.Skipped(); n > 0 {
		details += fmt.Sprintf(" (%d malformed chunks skipped)", n)
	}
	return TestPassed, details
}

// =============================================================================
// RUNNER
// =============================================================================

// RunTests executes the given tests and returns a summary.
func RunTests(ctx context.Context, env *Env, args Args, tests []*Test) *TestSummary {
	summary := &TestSummary{
		TotalTests: len(tests),
		Results:    make([]*TestResult, 0, len(tests)),
	}

	totalStart := time.Now()
	for _, test := range tests {
		start := time.Now()
		status, details := test.Run(ctx, env, args)
		result := &TestResult{
			ID:       test.ID,
			Name:     test.Name,
			Category: test.Category,
			Status:   status,
			Details:  details,
			Duration: time.Since(start).Milliseconds(),
		}
		summary.Results = append(summary.Results, result)

		switch status {
		case TestPassed:
			summary.Passed++
		case TestFailed:
			summary.Failed++
		case TestSkipped:
			summary.Skipped++
		}
	}

	summary.TotalTimeMs = time.Since(totalStart).Milliseconds()
	return summary
}

// PrintTestResult prints a single test result. Details are shown for
// failures and skips, or always when verbose.
func PrintTestResult(env *Env, result *TestResult, verbose bool) {
	fmt.Fprintf(env.Out, "%s %s: %s\n",
		result.Status.Symbol(),
		testIDStyle.Render(result.ID),
		result.Name)

	if result.Details != "" && (verbose || result.Status != TestPassed) {
		fmt.Fprintln(env.Out, testDetailsStyle.Render(result.Details))
	}
}

// PrintTestSummary prints the test summary line.
func PrintTestSummary(env *Env, summary *TestSummary) {
	fmt.Fprintln(env.Out)
	fmt.Fprintln(env.Out, SeparatorStyle.Render(strings.Repeat("-", 50)))

	parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
	if summary.Failed > 0 {
		parts = append(parts, testFailStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	if summary.Skipped > 0 {
		parts = append(parts, testSkipStyle.Render(fmt.Sprintf("%d skipped", summary.Skipped)))
	}

	fmt.Fprintf(env.Out, "Tests: %s | Total: %d | Time: %dms\n",
		strings.Join(parts, ", "),
		summary.TotalTests,
		summary.TotalTimeMs)
}

// =============================================================================
// HANDLE TEST COMMAND
// =============================================================================

// HandleTest handles the "test" command.
func HandleTest(ctx context.Context, env *Env, args Args) error {
	if args.TestScope == ScopeExamples {
		return HandleExamples(ctx, env, args)
	}

	summary := RunTests(ctx, env, args, testsForScope(args.TestScope))

	var failed error
	if summary.Failed > 0 {
		failed = fmt.Errorf("%d test(s) failed", summary.Failed)
	}

	if args.JSON {
		return OutputJSON(env.Out, "test", func() (any, error) {
			return summary, failed
		})
	}

	fmt.Fprintln(env.Out)
	fmt.Fprintln(env.Out, TitleStyle.Render("seekrun self-test"))
	fmt.Fprintln(env.Out, RenderSeparator(50))
	fmt.Fprintln(env.Out)

	for _, result := range summary.Results {
		PrintTestResult(env, result, args.Verbose)
	}

	PrintTestSummary(env, summary)
	fmt.Fprintln(env.Out)
	return failed
}
