package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/types"
)

// fakeRunner returns a runner whose subprocess is a shell snippet
// executed inside the session working directory.
func fakeRunner(t *testing.T, script string) *Runner {
	t.Helper()
	return New(Options{
		BaseDir: t.TempDir(),
		Command: []string{"/bin/sh", "-c", script},
	})
}

func request(timeoutMs int) types.RunRequest {
	return types.RunRequest{
		ScriptSource: "import { test } from '@playwright/test';\n",
		Config:       types.RunConfig{TimeoutMs: timeoutMs, Headless: true},
	}
}

func TestExecute_ZeroExitNoReportIsDegenerateSuccess(t *testing.T) {
	r := fakeRunner(t, "exit 0")
	result, err := r.Execute(context.Background(), "s1", request(5000), nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusPassed, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, types.Summary{}, result.Summary)
	assert.Empty(t, result.Error)
}

func TestExecute_ReportParsedIntoResult(t *testing.T) {
	report := `{
		"stats": {"expected": 2, "unexpected": 1, "skipped": 1, "duration": 1234.5},
		"suites": [{
			"title": "generated.spec.ts",
			"specs": [
				{"title": "login works", "ok": true, "tests": [{"results": [{"status": "passed", "duration": 800}]}]},
				{"title": "logout works", "ok": false, "tests": [{"results": [{"status": "failed", "duration": 400, "error": {"message": "locator not found"}}]}]}
			]
		}]
	}`
	r := fakeRunner(t, "cat > report.json <<'EOF'\n"+report+"\nEOF\nexit 1")

	result, err := r.Execute(context.Background(), "s2", request(5000), nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, types.Summary{Total: 4, Passed: 2, Failed: 1, Skipped: 1}, result.Summary)
	require.Len(t, result.PerTest, 2)
	assert.Equal(t, "login works", result.PerTest[0].Title)
	assert.Equal(t, "failed", result.PerTest[1].Status)
	assert.Equal(t, "locator not found", result.PerTest[1].Error)
	assert.Contains(t, result.Error, "1 of 4 tests failed")
}

func TestExecute_NonZeroExitNoReportIsError(t *testing.T) {
	r := fakeRunner(t, "echo boom >&2; exit 3")
	result, err := r.Execute(context.Background(), "s3", request(5000), nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusError, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Error, "no readable report")
	assert.Contains(t, result.Stderr, "boom")
}

func TestExecute_TimeoutTerminatesProcess(t *testing.T) {
	r := fakeRunner(t, "sleep 10")
	start := time.Now()
	result, err := r.Execute(context.Background(), "s4", request(200), nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, types.StatusError, result.Status)
	assert.Contains(t, result.Error, "timed out after 200ms")
}

func TestExecute_TimeoutKillsBackgroundChildren(t *testing.T) {
	// The backgrounded sleep inherits the output pipes. Execute must
	// still return promptly after the timeout instead of waiting for
	// the child to exit on its own.
	r := fakeRunner(t, "sleep 8 & sleep 8")
	start := time.Now()
	result, err := r.Execute(context.Background(), "s4b", request(300), nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, types.StatusError, result.Status)
	assert.Contains(t, result.Error, "timed out after 300ms")
}

func TestExecute_CancellationIsCooperative(t *testing.T) {
	r := fakeRunner(t, "sleep 10")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result, err := r.Execute(ctx, "s5", request(30000), nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, result.Status)
	assert.Contains(t, result.Error, "cancelled")
}

func TestExecute_StreamsOutputLines(t *testing.T) {
	r := fakeRunner(t, "echo one; echo two; echo err >&2")

	var mu sync.Mutex
	var lines []string
	onLog := func(stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, stream+":"+line)
	}

	result, err := r.Execute(context.Background(), "s6", request(5000), onLog)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, lines, "stdout:one")
	assert.Contains(t, lines, "stdout:two")
	assert.Contains(t, lines, "stderr:err")
	assert.Contains(t, result.Stdout, "one\ntwo\n")
}

func TestExecute_CollectsArtifacts(t *testing.T) {
	r := fakeRunner(t, "mkdir -p artifacts test-results; touch artifacts/step-1.png test-results/video.webm test-results/trace.zip; exit 0")
	result, err := r.Execute(context.Background(), "s7", request(5000), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("artifacts", "step-1.png")}, result.Artifacts.Screenshots)
	assert.Equal(t, []string{filepath.Join("test-results", "video.webm")}, result.Artifacts.Videos)
	assert.Equal(t, []string{filepath.Join("test-results", "trace.zip")}, result.Artifacts.Traces)
}

func TestExecute_WorkdirIsRemoved(t *testing.T) {
	base := t.TempDir()
	r := New(Options{BaseDir: base, Command: []string{"/bin/sh", "-c", "exit 0"}})

	_, err := r.Execute(context.Background(), "s8", request(5000), nil)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(base, "pilot-run-s8"))
	assert.True(t, os.IsNotExist(statErr), "working directory should be removed after the run")
}

func TestExecute_RetainsArtifacts(t *testing.T) {
	base := t.TempDir()
	retain := t.TempDir()
	r := New(Options{
		BaseDir:       base,
		RetainDir:     retain,
		KeepArtifacts: true,
		Command:       []string{"/bin/sh", "-c", "touch artifacts/final.png; exit 0"},
	})

	result, err := r.Execute(context.Background(), "s9", request(5000), nil)
	require.NoError(t, err)

	require.Len(t, result.Artifacts.Screenshots, 1)
	retained := result.Artifacts.Screenshots[0]
	assert.Contains(t, retained, retain)
	_, statErr := os.Stat(retained)
	assert.NoError(t, statErr, "retained artifact should survive workdir cleanup")
}

func TestExecute_MaterializesScriptAndConfig(t *testing.T) {
	r := fakeRunner(t, "test -f generated.spec.ts && test -f playwright.config.ts && exit 0 || exit 7")
	result, err := r.Execute(context.Background(), "s10", request(5000), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}
