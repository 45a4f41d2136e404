// Package runner executes generated scripts in isolated subprocesses.
//
// Each execution materializes the script and its run configuration into
// a per-session working directory, shells out to the Playwright CLI,
// streams output incrementally, enforces a wall-clock timeout, and
// collects the structured report plus artifact files before the working
// directory is removed.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/security/workspace"
	"github.com/entrhq/pilot/pkg/types"
)

// Stream names used for incremental log callbacks.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// LogFunc receives one line of subprocess output as it is produced.
type LogFunc func(stream, line string)

// Options configures a Runner.
type Options struct {
	// BaseDir is where per-session working directories are created.
	// Empty means the system temp directory.
	BaseDir string

	// Command overrides the execution command. Defaults to the
	// Playwright CLI. The command runs with the working directory as
	// its current directory.
	Command []string

	// KeepArtifacts moves the collected artifact files into RetainDir
	// before the working directory is removed.
	KeepArtifacts bool
	RetainDir     string
}

// Runner spawns isolated subprocesses to execute generated scripts.
type Runner struct {
	opts   Options
	logger *logging.Logger
}

// New creates a runner with the given options.
func New(opts Options) *Runner {
	if len(opts.Command) == 0 {
		opts.Command = []string{"npx", "playwright", "test", "--config", configFileName}
	}
	logger, _ := logging.NewLogger("runner")
	return &Runner{opts: opts, logger: logger}
}

// Execute runs the script under the declared configuration and returns
// its result. The context controls cooperative cancellation; the
// configured timeout is enforced on top of it. Execute always returns a
// result with a terminal status; the error return is reserved for
// failures to set up the working area.
func (r *Runner) Execute(ctx context.Context, sessionID string, req types.RunRequest, onLog LogFunc) (*types.RunResult, error) {
	workdir, err := NewWorkdir(r.opts.BaseDir, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if removeErr := workdir.Remove(); removeErr != nil {
			r.logger.Warnf("failed to remove working directory %s: %v", workdir.Root(), removeErr)
		}
	}()

	if _, err := workdir.WriteScript(req.ScriptSource); err != nil {
		return nil, err
	}
	if _, err := workdir.WriteConfig(renderConfig(req.Config)); err != nil {
		return nil, err
	}

	timeout := time.Duration(req.Config.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(types.DefaultRunConfig().TimeoutMs) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, runErr := r.run(execCtx, workdir.Root(), onLog)
	duration := time.Since(start)

	result := &types.RunResult{
		DurationMs: duration.Milliseconds(),
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   exitCode,
		Artifacts:  collectArtifacts(workdir.Root()),
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Status = types.StatusError
		result.Error = fmt.Sprintf("run timed out after %dms", timeout.Milliseconds())

	case errors.Is(execCtx.Err(), context.Canceled):
		result.Status = types.StatusError
		result.Error = "run cancelled"

	case runErr != nil && exitCode < 0:
		result.Status = types.StatusError
		result.Error = fmt.Sprintf("failed to start execution: %v", runErr)

	default:
		r.resolve(result, workdir.ReportPath())
	}

	if r.opts.KeepArtifacts && r.opts.RetainDir != "" {
		r.retainArtifacts(workdir.Root(), sessionID, &result.Artifacts)
	}

	r.logger.Infof("session %s finished: status=%s exit=%d duration=%dms",
		sessionID, result.Status, result.ExitCode, result.DurationMs)
	return result, nil
}

// resolve folds the structured report into the result. A missing or
// unreadable report with a zero exit code is degenerate success; with a
// non-zero exit code it is an execution error.
func (r *Runner) resolve(result *types.RunResult, reportPath string) {
	summary, perTest, err := parseReport(reportPath)
	if err != nil {
		if result.ExitCode == 0 {
			result.Status = types.StatusPassed
			return
		}
		result.Status = types.StatusError
		result.Error = fmt.Sprintf("exited with code %d and no readable report: %v", result.ExitCode, err)
		return
	}

	result.Summary = summary
	result.PerTest = perTest
	switch {
	case result.ExitCode == 0:
		result.Status = types.StatusPassed
	case summary.Failed > 0:
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("%d of %d tests failed", summary.Failed, summary.Total)
	default:
		result.Status = types.StatusError
		result.Error = fmt.Sprintf("exited with code %d", result.ExitCode)
	}
}

// pipeDrainGrace bounds how long run waits for the output readers after
// the subprocess has been killed on cancellation.
const pipeDrainGrace = 2 * time.Second

// run launches the subprocess and streams its output line by line.
// The returned exit code is -1 when the process could not be started.
func (r *Runner) run(ctx context.Context, dir string, onLog LogFunc) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, r.opts.Command[0], r.opts.Command[1:]...)
	cmd.Dir = dir

	// The tool runs in its own process group so the timeout kill reaches
	// its descendants too. The Playwright CLI spawns children that
	// inherit the output pipes; killing only the direct child would
	// leave them holding the pipes open past the timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", -1, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", -1, err
	}

	if err := cmd.Start(); err != nil {
		return "", "", -1, err
	}

	var wg sync.WaitGroup
	var outputMu sync.Mutex
	var stdoutBuf, stderrBuf strings.Builder
	wg.Add(2)
	go streamLines(&wg, stdoutPipe, &stdoutBuf, &outputMu, StreamStdout, onLog)
	go streamLines(&wg, stderrPipe, &stderrBuf, &outputMu, StreamStderr, onLog)

	streamed := make(chan struct{})
	go func() {
		wg.Wait()
		close(streamed)
	}()

	select {
	case <-streamed:
	case <-ctx.Done():
		// The group kill closes the pipes, which normally ends the
		// readers almost immediately. A descendant that moved itself
		// out of the process group could still hold them open, so the
		// wait is bounded: after the grace period the readers are
		// abandoned and finish on their own once cmd.Wait closes the
		// parent's pipe ends.
		select {
		case <-streamed:
		case <-time.After(pipeDrainGrace):
			r.logger.Warnf("abandoning output readers after cancellation")
		}
	}

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	outputMu.Lock()
	stdout, stderr := stdoutBuf.String(), stderrBuf.String()
	outputMu.Unlock()
	return stdout, stderr, exitCode, err
}

// streamLines forwards subprocess output to the log callback while
// accumulating it for the final result. Builder writes take the mutex
// because run may snapshot the buffers while an abandoned reader is
// still draining.
func streamLines(wg *sync.WaitGroup, pipe io.Reader, buf *strings.Builder, mu *sync.Mutex, stream string, onLog LogFunc) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		mu.Lock()
		buf.WriteString(line)
		buf.WriteString("\n")
		mu.Unlock()
		if onLog != nil {
			onLog(stream, line)
		}
	}
}

// retainArtifacts copies collected artifact files into the retention
// directory before the working area is deleted, rewriting the artifact
// paths in place to their retained locations.
func (r *Runner) retainArtifacts(root, sessionID string, artifacts *types.Artifacts) {
	guard, err := workspace.NewGuard(root)
	if err != nil {
		r.logger.Warnf("failed to guard working area %s: %v", root, err)
		return
	}

	dest := filepath.Join(r.opts.RetainDir, sessionID)
	rewrite := func(paths []string) []string {
		kept := make([]string, 0, len(paths))
		for _, rel := range paths {
			if err := guard.Validate(rel); err != nil {
				r.logger.Warnf("skipping artifact %s: %v", rel, err)
				continue
			}
			target := filepath.Join(dest, rel)
			if err := copyFile(filepath.Join(root, rel), target); err != nil {
				r.logger.Warnf("failed to retain artifact %s: %v", rel, err)
				continue
			}
			kept = append(kept, target)
		}
		return kept
	}
	artifacts.Screenshots = rewrite(artifacts.Screenshots)
	artifacts.Videos = rewrite(artifacts.Videos)
	artifacts.Traces = rewrite(artifacts.Traces)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
