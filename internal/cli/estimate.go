package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/estimate"
)

func init() {
	estimateCmd.Flags().IntVar(&estimateDatasetSize, "dataset-size", 0, "Number of training examples (required)")
	estimateCmd.Flags().IntVar(&estimateEpochs, "epochs", 3, "Training epochs")
	estimateCmd.Flags().StringVar(&estimateTier, "tier", string(domain.TierLightweightAdapter), "Training tier (lightweight-adapter or full)")
	rootCmd.AddCommand(estimateCmd)
}

var (
	estimateDatasetSize int
	estimateEpochs      int
	estimateTier        string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate cost and duration of a prospective run",
	RunE:  runEstimate,
}

func runEstimate(cmd *cobra.Command, args []string) error {
	sum, err := estimate.ForRun(estimateDatasetSize, estimateEpochs, domain.Tier(estimateTier))
	if err != nil {
		return err
	}

	fmt.Printf("Estimated cost:     $%.4f\n", sum.Cost)
	fmt.Printf("Estimated duration: %s\n", sum.HumanDuration)
	return nil
}
