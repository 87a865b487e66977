package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"looper/internal/output"
	"looper/internal/state"
)

var (
	statusLogsDir string
	statusEvents  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current loop session state",
	Long: `Show the session state and recent events for a log directory.

Reads the on-disk state and log files only; it never interferes with a
running loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusLogsDir, "logs", "", "Log/state directory (default from config)")
	statusCmd.Flags().IntVar(&statusEvents, "events", 10, "Recent events to show")
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	st, err := state.New(logsDir(statusLogsDir))
	if err != nil {
		return err
	}

	sess, err := st.LoadSession()
	if err != nil {
		ui.Info("No session state in %s", st.Dir())
		return nil
	}

	fmt.Fprintf(ui.Out, "Session:    %s\n", output.Cyan(sess.ID))
	fmt.Fprintf(ui.Out, "Status:     %s\n", output.StatusColor(string(sess.Status)))
	fmt.Fprintf(ui.Out, "Iteration:  %d (completion count %d)\n", sess.Iteration, sess.CompletionCount)
	fmt.Fprintf(ui.Out, "Cost:       $%.4f\n", sess.TotalCostUSD)
	fmt.Fprintf(ui.Out, "Started:    %s\n", sess.StartedAt.Local().Format(time.RFC822))
	fmt.Fprintf(ui.Out, "Updated:    %s (%s ago)\n", sess.LastUpdate.Local().Format(time.RFC822), timeAgo(sess.LastUpdate))
	if sess.Task != "" {
		fmt.Fprintf(ui.Out, "Task:       %s\n", sess.Task)
	}

	events, err := st.TailEvents(statusEvents)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Time", "Level", "Iter", "Message"})
	for _, ev := range events {
		table.Append([]string{
			ev.Timestamp.Local().Format("15:04:05"),
			string(ev.Level),
			fmt.Sprintf("%d", ev.Iteration),
			ev.Message,
		})
	}
	table.Render()
	return nil
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
