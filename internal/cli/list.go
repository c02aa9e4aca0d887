package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bledden/tinker-voice/internal/daemon"
	"github.com/bledden/tinker-voice/internal/domain"
)

func init() {
	listCmd.Flags().BoolVar(&listRefresh, "refresh", false, "Refresh from the provider before listing")
	rootCmd.AddCommand(listCmd)
}

var listRefresh bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List fine-tuning runs",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	runs := d.Orch.Runs()
	if listRefresh {
		runs, err = d.Orch.RefreshRuns(context.Background())
		if err != nil {
			return err
		}
	}

	if len(runs) == 0 {
		fmt.Println("No runs yet. Run 'tinkerd create' to start one.")
		return nil
	}

	active, _ := d.Orch.ActiveRun()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPROGRESS\tCOST\tCREATED")
	for _, r := range runs {
		marker := ""
		if r.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			r.ID,
			r.Name,
			r.Status,
			progressCell(&r),
			costCell(&r),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func progressCell(r *domain.TrainingRun) string {
	if r.Progress == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", r.Progress.PercentComplete())
}

func costCell(r *domain.TrainingRun) string {
	if r.Config.EstimatedCost == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.4f", r.Config.EstimatedCost)
}
