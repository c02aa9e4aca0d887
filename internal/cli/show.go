package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show detailed information about a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Orch.Run(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", run.ID)
	if run.Name != "" {
		fmt.Printf("Name:        %s\n", run.Name)
	}
	if run.Description != "" {
		fmt.Printf("Description: %s\n", run.Description)
	}
	fmt.Printf("Status:      %s\n", run.Status)
	fmt.Printf("Base model:  %s\n", run.Config.BaseModel)
	fmt.Printf("Dataset:     %s\n", run.DatasetID)
	fmt.Printf("Tier:        %s\n", run.Config.Tier)
	fmt.Printf("Epochs:      %d\n", run.Config.Epochs)
	if run.Config.EstimatedCost > 0 {
		fmt.Printf("Estimate:    $%.4f, %s\n", run.Config.EstimatedCost, run.Config.EstimatedDuration)
	}
	if p := run.Progress; p != nil {
		fmt.Printf("Progress:    %.0f%% (step %d/%d, epoch %d/%d)\n",
			p.PercentComplete(), p.CurrentStep, p.TotalSteps, p.CurrentEpoch, p.TotalEpochs)
		if p.Loss != nil {
			fmt.Printf("Loss:        %.4f\n", *p.Loss)
		}
	}
	fmt.Printf("Created:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if !run.StartedAt.IsZero() {
		fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !run.CompletedAt.IsZero() {
		fmt.Printf("Completed:   %s\n", run.CompletedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration:    %s\n", run.Duration().Round(time.Second))
	}
	if run.ArtifactID != "" {
		fmt.Printf("Artifact:    %s\n", run.ArtifactID)
	}
	if run.Error != "" {
		fmt.Printf("Error:       %s\n", run.Error)
	}
	return nil
}
