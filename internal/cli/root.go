// Package cli implements the tinkerd command-line interface using Cobra.
// Each subcommand maps to one run-lifecycle operation (create, start,
// cancel, list, watch).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tinkerd",
	Short: "tinkerd — fine-tune voice models on the Tinker platform",
	Long: `tinkerd manages fine-tuning runs against the Tinker training API.
Create a run from a dataset, start it, and watch training progress live.

Without a TINKER_API_KEY the daemon runs against a deterministic mock
provider, so every command works offline.`,
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
