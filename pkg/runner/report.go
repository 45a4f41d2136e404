package runner

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/entrhq/pilot/pkg/types"
)

// playwrightReport mirrors the subset of the Playwright JSON reporter
// output the runner consumes. Unknown fields are ignored.
type playwrightReport struct {
	Stats  reportStats   `json:"stats"`
	Suites []reportSuite `json:"suites"`
}

type reportStats struct {
	Expected   int     `json:"expected"`
	Unexpected int     `json:"unexpected"`
	Skipped    int     `json:"skipped"`
	Flaky      int     `json:"flaky"`
	Duration   float64 `json:"duration"`
}

type reportSuite struct {
	Title  string        `json:"title"`
	Specs  []reportSpec  `json:"specs"`
	Suites []reportSuite `json:"suites"`
}

type reportSpec struct {
	Title string       `json:"title"`
	OK    bool         `json:"ok"`
	Tests []reportTest `json:"tests"`
}

type reportTest struct {
	Results []reportResult `json:"results"`
}

type reportResult struct {
	Status   string       `json:"status"`
	Duration float64      `json:"duration"`
	Error    *reportError `json:"error"`
}

type reportError struct {
	Message string `json:"message"`
}

// parseReport reads the structured report and folds it into summary and
// per-test outcomes.
func parseReport(path string) (types.Summary, []types.TestOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Summary{}, nil, fmt.Errorf("failed to read report: %w", err)
	}

	var report playwrightReport
	if err := json.Unmarshal(data, &report); err != nil {
		return types.Summary{}, nil, fmt.Errorf("failed to parse report: %w", err)
	}

	summary := types.Summary{
		Total:   report.Stats.Expected + report.Stats.Unexpected + report.Stats.Skipped,
		Passed:  report.Stats.Expected,
		Failed:  report.Stats.Unexpected,
		Skipped: report.Stats.Skipped,
	}

	var outcomes []types.TestOutcome
	for _, suite := range report.Suites {
		outcomes = collectOutcomes(suite, outcomes)
	}
	return summary, outcomes, nil
}

// collectOutcomes walks nested suites and flattens per-test results. The
// last result of a test wins so retried tests report their final state.
func collectOutcomes(suite reportSuite, outcomes []types.TestOutcome) []types.TestOutcome {
	for _, spec := range suite.Specs {
		for _, test := range spec.Tests {
			if len(test.Results) == 0 {
				continue
			}
			last := test.Results[len(test.Results)-1]
			outcome := types.TestOutcome{
				Title:      spec.Title,
				Status:     last.Status,
				DurationMs: int64(last.Duration),
			}
			if last.Error != nil {
				outcome.Error = last.Error.Message
			}
			outcomes = append(outcomes, outcome)
		}
	}
	for _, nested := range suite.Suites {
		outcomes = collectOutcomes(nested, outcomes)
	}
	return outcomes
}
