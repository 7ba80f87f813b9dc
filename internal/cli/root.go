// Package cli implements the Ampli command-line interface using Cobra.
// Each subcommand maps to an engine capability (serve, submit, compete,
// status).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ampli",
	Short: "Ampli — content amplification orchestration engine",
	Long: `Ampli orchestrates content amplification tasks and self-compete
variant competitions: idempotent admission, cost-margin and error-budget
gating, circuit-broken collaborator calls, priority-queued execution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
