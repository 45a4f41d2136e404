package types

// RunStatus is the overall outcome of one executed run.
type RunStatus string

const (
	StatusPassed RunStatus = "passed"
	StatusFailed RunStatus = "failed"
	StatusError  RunStatus = "error"
)

// Summary aggregates per-test outcomes for one run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// TestOutcome is the result of a single test within a run.
type TestOutcome struct {
	Title      string `json:"title"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Artifacts lists the byproduct files collected from a run's working
// area, grouped by kind.
type Artifacts struct {
	Screenshots []string `json:"screenshots"`
	Videos      []string `json:"videos"`
	Traces      []string `json:"traces"`
}

// RunResult is produced exactly once per completed, failed, or errored
// session and is immutable thereafter.
type RunResult struct {
	Status     RunStatus     `json:"status"`
	DurationMs int64         `json:"durationMs"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	ExitCode   int           `json:"exitCode"`
	Summary    Summary       `json:"summary"`
	PerTest    []TestOutcome `json:"perTest,omitempty"`
	Artifacts  Artifacts     `json:"artifacts"`
	Error      string        `json:"error,omitempty"`
}
