package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"looper/internal/loop"
	"looper/internal/runner"
	"looper/internal/state"
)

var (
	todoFile    string
	todoPhrase  string
	todoMaxIter int
	todoWorkDir string
	todoLogsDir string
	todoDelay   time.Duration
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Run the agent loop driven by a persistent checklist",
	Long: `Drive the agent from a checklist file instead of a single task.

Each iteration picks the next actionable item ([HIGH] pending first,
then in-progress, then the earliest pending; blocked items are
skipped) and hands it to the agent, which rewrites the checklist
itself. The loop succeeds when every item is done or the agent emits
the completion phrase once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return todoRun(cmd.Context())
	},
}

func init() {
	todoCmd.Flags().StringVar(&todoFile, "file", "TODO.md", "Checklist file")
	todoCmd.Flags().StringVar(&todoPhrase, "phrase", "", "Completion phrase (default from config)")
	todoCmd.Flags().IntVar(&todoMaxIter, "max-iterations", 0, "Iteration cap (default from config)")
	todoCmd.Flags().StringVar(&todoWorkDir, "dir", ".", "Working directory for the agent")
	todoCmd.Flags().StringVar(&todoLogsDir, "logs", "", "Log/state directory (default from config)")
	todoCmd.Flags().DurationVar(&todoDelay, "delay", 0, "Delay between iterations (default from config)")
	rootCmd.AddCommand(todoCmd)
}

func todoRun(ctx context.Context) error {
	agentCmd := viper.GetString("agent.command")
	if err := runner.CheckAgent(agentCmd); err != nil {
		return err
	}
	if _, err := os.Stat(todoFile); err != nil {
		return fmt.Errorf("checklist file %s: %w", todoFile, err)
	}

	cfg := loop.TodoConfig{
		ChecklistPath: todoFile,
		Phrase:        stringOr(todoPhrase, viper.GetString("loop.phrase")),
		MaxIterations: intOr(todoMaxIter, viper.GetInt("loop.max_iterations")),
		WorkDir:       todoWorkDir,
		Delay:         delayOr(todoDelay),
	}

	st, err := state.New(logsDir(todoLogsDir))
	if err != nil {
		return err
	}

	archive, err := getStore()
	if err != nil {
		ui.Warning("session archive unavailable: %v", err)
		archive = nil
	}

	r := runner.NewCLIRunner(agentCmd, viper.GetStringSlice("agent.args")...)
	ctrl := loop.NewTodoController(cfg, r, st, archive, ui)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	res, err := ctrl.Run(ctx)
	return finishLoop(res, err)
}
