package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/instruction"
	"github.com/entrhq/pilot/pkg/script"
	"github.com/entrhq/pilot/pkg/types"
)

func newGenerateCmd() *cobra.Command {
	var (
		name    string
		outPath string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "generate <instructions-file>",
		Short: "Compile plain-language instructions into a test script",
		Long: `Parse a plain-language instructions file (one step per line) and print
the generated Playwright test script, or write it with -o.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read instructions: %w", err)
			}

			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			cfg := types.DefaultRunConfig()
			cfg.BaseURL = baseURL

			steps := instruction.Parse(string(text))
			source, err := script.NewGenerator().Generate(name, steps, cfg)
			if err != nil {
				return err
			}

			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), source)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(source), 0644); err != nil {
				return fmt.Errorf("failed to write script: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d steps)\n", outPath, len(steps))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Test name (defaults to the file name)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the script to a file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL resolved against relative navigation targets")

	return cmd
}
