package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/estimate"
	"github.com/bledden/tinker-voice/internal/orchestrator"
)

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Run name")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Run description")
	createCmd.Flags().StringVar(&createDataset, "dataset", "", "Dataset ID to train on (required)")
	createCmd.Flags().IntVar(&createDatasetSize, "dataset-size", 0, "Number of examples, for cost estimation")
	createCmd.Flags().StringVar(&createBaseModel, "base-model", "", "Base model to fine-tune (required)")
	createCmd.Flags().IntVar(&createEpochs, "epochs", 3, "Training epochs")
	createCmd.Flags().Float64Var(&createLearningRate, "learning-rate", 2e-5, "Learning rate")
	createCmd.Flags().IntVar(&createBatchSize, "batch-size", 4, "Batch size")
	createCmd.Flags().StringVar(&createTier, "tier", string(domain.TierLightweightAdapter), "Training tier (lightweight-adapter or full)")
	createCmd.Flags().BoolVar(&createStart, "start", false, "Start the run immediately")
	rootCmd.AddCommand(createCmd)
}

var (
	createName         string
	createDescription  string
	createDataset      string
	createDatasetSize  int
	createBaseModel    string
	createEpochs       int
	createLearningRate float64
	createBatchSize    int
	createTier         string
	createStart        bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new fine-tuning run",
	RunE:  runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := domain.TrainingConfig{
		BaseModel:    createBaseModel,
		LearningRate: createLearningRate,
		Epochs:       createEpochs,
		BatchSize:    createBatchSize,
		Tier:         domain.Tier(createTier),
	}
	if createDatasetSize > 0 {
		if err := estimate.Annotate(&cfg, createDatasetSize); err != nil {
			return err
		}
	}

	ctx := context.Background()
	run, err := d.Orch.CreateRun(ctx, orchestrator.CreateRunInput{
		Name:        createName,
		Description: createDescription,
		DatasetID:   createDataset,
		Config:      cfg,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created run %s (%s)\n", run.ID, run.Status)
	if cfg.EstimatedCost > 0 {
		fmt.Printf("  Estimated cost:     $%.4f\n", cfg.EstimatedCost)
		fmt.Printf("  Estimated duration: %s\n", cfg.EstimatedDuration)
	}

	if createStart {
		if _, err := d.Orch.StartRun(ctx, run.ID); err != nil {
			return err
		}
		fmt.Printf("Started run %s\n", run.ID)
	}
	return nil
}
