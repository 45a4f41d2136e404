package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/instruction"
	"github.com/entrhq/pilot/pkg/runner"
	"github.com/entrhq/pilot/pkg/script"
	"github.com/entrhq/pilot/pkg/types"
)

func newRunCmd() *cobra.Command {
	var (
		name        string
		baseURL     string
		browserKind string
		headed      bool
		timeoutMs   int
		keepDir     string
	)

	cmd := &cobra.Command{
		Use:   "run <instructions-file>",
		Short: "Compile and execute instructions in one shot",
		Long: `Parse a plain-language instructions file, generate the test script,
and execute it immediately, streaming output to the terminal. Exits
non-zero when the run does not pass.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read instructions: %w", err)
			}

			cfg := types.DefaultRunConfig()
			cfg.BaseURL = baseURL
			cfg.Headless = !headed
			if browserKind != "" {
				if !types.BrowserKind(browserKind).Valid() {
					return fmt.Errorf("invalid browser: %s", browserKind)
				}
				cfg.Browser = types.BrowserKind(browserKind)
			}
			if timeoutMs > 0 {
				cfg.TimeoutMs = timeoutMs
			}

			if name == "" {
				name = "cli run"
			}
			steps := instruction.Parse(string(text))
			source, err := script.NewGenerator().Generate(name, steps, cfg)
			if err != nil {
				return err
			}

			exec := runner.New(runner.Options{
				KeepArtifacts: keepDir != "",
				RetainDir:     keepDir,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := exec.Execute(ctx, uuid.New().String(), types.RunRequest{
				Name:         name,
				ScriptSource: source,
				Config:       cfg,
			}, func(stream, line string) {
				if stream == runner.StreamStderr {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			})
			if err != nil {
				return err
			}

			printResult(cmd, result)
			if result.Status != types.StatusPassed {
				return fmt.Errorf("run %s", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Test name")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL resolved against relative navigation targets")
	cmd.Flags().StringVar(&browserKind, "browser", "", "Browser to run against (chromium, firefox, webkit)")
	cmd.Flags().BoolVar(&headed, "headed", false, "Run with a visible browser window")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "Run timeout in milliseconds")
	cmd.Flags().StringVar(&keepDir, "keep-artifacts", "", "Directory to retain screenshots, videos, and traces")

	return cmd
}

func printResult(cmd *cobra.Command, result *types.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nStatus:   %s\n", result.Status)
	fmt.Fprintf(out, "Duration: %dms\n", result.DurationMs)
	fmt.Fprintf(out, "Tests:    %d total, %d passed, %d failed, %d skipped\n",
		result.Summary.Total, result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped)
	if result.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", result.Error)
	}
	for _, t := range result.PerTest {
		fmt.Fprintf(out, "  - %s: %s (%dms)\n", t.Title, t.Status, t.DurationMs)
	}
}
