package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "pilot",
		Short: "Pilot - plain-language browser test orchestration",
		Long: `Pilot turns plain-language test instructions into Playwright test
scripts and runs them under a bounded-concurrency scheduler, either as a
persistent WebSocket server or as one-shot CLI invocations.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newRunCmd(),
		newInstallCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
