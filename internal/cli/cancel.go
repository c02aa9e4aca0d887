package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
)

func init() {
	rootCmd.AddCommand(cancelCmd)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel RUN_ID",
	Short: "Cancel a pending or running fine-tuning run",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Orch.CancelRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Cancelled run %s\n", run.ID)
	return nil
}
