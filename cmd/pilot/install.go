package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/browser"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Playwright driver and browsers",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Installing Playwright driver and browsers...")
			if err := browser.Install(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Done.")
			return nil
		},
	}
}
