package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the run list from the provider",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	runs, err := d.Orch.RefreshRuns(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Refreshed %d run(s)\n", len(runs))
	return nil
}
