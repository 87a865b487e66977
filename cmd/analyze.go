package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"looper/internal/llm"
	"looper/internal/state"
)

var (
	analyzeLogsDir string
	analyzeEvents  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Diagnose how a loop session ended using the Anthropic API",
	Long: `Send a session's state and recent events to the Anthropic API and
print a short diagnosis: how the run ended, why, and what to do next.

Requires anthropic.api_key (or ANTHROPIC_API_KEY picked up by the SDK).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeRun(cmd.Context())
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLogsDir, "logs", "", "Log/state directory (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeEvents, "events", 50, "Recent events to include")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeRun(ctx context.Context) error {
	st, err := state.New(logsDir(analyzeLogsDir))
	if err != nil {
		return err
	}

	sess, err := st.LoadSession()
	if err != nil {
		return fmt.Errorf("no session state in %s: %w", st.Dir(), err)
	}
	events, err := st.TailEvents(analyzeEvents)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	client := llm.NewClient(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"))
	analysis, err := client.AnalyzeSession(ctx, sess, events)
	if err != nil {
		return err
	}

	ui.Info("Session %s (%s)", sess.ID, sess.Status)
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Summary:     %s\n", analysis.Summary)
	fmt.Fprintf(ui.Out, "Diagnosis:   %s\n", analysis.Diagnosis)
	fmt.Fprintf(ui.Out, "Next action: %s\n", analysis.NextAction)
	return nil
}
