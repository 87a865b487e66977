package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"looper/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived loop sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Max sessions to show")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	recs, err := s.ListSessions(ctx, historyLimit)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		ui.Info("No archived sessions yet")
		return nil
	}

	table := ui.Table([]string{"Session", "Mode", "Status", "Iters", "Cost", "Started", "Task"})
	for _, r := range recs {
		task := r.Task
		if len(task) > 48 {
			task = task[:45] + "..."
		}
		table.Append([]string{
			output.Cyan(r.SessionID),
			r.Mode,
			output.StatusColor(string(r.Status)),
			fmt.Sprintf("%d", r.Iterations),
			fmt.Sprintf("$%.4f", r.TotalCostUSD),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			task,
		})
	}
	table.Render()
	return nil
}
