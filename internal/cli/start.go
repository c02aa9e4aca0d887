package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start RUN_ID",
	Short: "Start a pending fine-tuning run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Orch.StartRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Started run %s (%s)\n", run.ID, run.Status)
	return nil
}
