package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"looper/internal/limits"
	"looper/internal/lock"
	"looper/internal/loop"
	"looper/internal/runner"
	"looper/internal/state"
)

// Exit codes for run/todo, distinct per outcome so callers can script
// around limit exhaustion vs. a competing instance.
const (
	exitOK             = 0
	exitLimitReached   = 2
	exitAlreadyRunning = 3
	exitInterrupted    = 130
)

var (
	runPhrase      string
	runThreshold   int
	runMaxIter     int
	runMaxDuration string
	runMaxCost     float64
	runWorkDir     string
	runLogsDir     string
	runDelay       time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run the agent loop on a task until it signals completion",
	Long: `Run the agent repeatedly on a task description.

Each iteration invokes the agent with the task (or a continue-from-
where-you-left-off reminder) and scans its output for the completion
phrase. The loop succeeds once the phrase appears in the configured
number of consecutive iterations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().StringVar(&runPhrase, "phrase", "", "Completion phrase the agent must emit (default from config)")
	runCmd.Flags().IntVar(&runThreshold, "threshold", 0, "Consecutive iterations the phrase must appear in (default from config)")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "Iteration cap (default from config)")
	runCmd.Flags().StringVar(&runMaxDuration, "max-duration", "", "Wall-clock budget, h/m/s components (e.g. 2h30m); unlimited if empty")
	runCmd.Flags().Float64Var(&runMaxCost, "max-cost", 0, "Accumulated cost budget in USD; unlimited if zero")
	runCmd.Flags().StringVar(&runWorkDir, "dir", ".", "Working directory for the agent")
	runCmd.Flags().StringVar(&runLogsDir, "logs", "", "Log/state directory (default from config)")
	runCmd.Flags().DurationVar(&runDelay, "delay", 0, "Delay between iterations (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context, task string) error {
	agentCmd := viper.GetString("agent.command")
	if err := runner.CheckAgent(agentCmd); err != nil {
		return err
	}

	maxDuration, err := limits.ParseMaxDuration(runMaxDuration)
	if err != nil {
		return err
	}

	cfg := loop.Config{
		Task:      task,
		Phrase:    stringOr(runPhrase, viper.GetString("loop.phrase")),
		Threshold: intOr(runThreshold, viper.GetInt("loop.threshold")),
		Limits: limits.Limits{
			MaxIterations: intOr(runMaxIter, viper.GetInt("loop.max_iterations")),
			MaxDuration:   maxDuration,
			MaxCostUSD:    runMaxCost,
		},
		WorkDir: runWorkDir,
		Delay:   delayOr(runDelay),
	}

	st, err := state.New(logsDir(runLogsDir))
	if err != nil {
		return err
	}

	archive, err := getStore()
	if err != nil {
		// The archive is supplementary; the loop runs without it.
		ui.Warning("session archive unavailable: %v", err)
		archive = nil
	}

	r := runner.NewCLIRunner(agentCmd, viper.GetStringSlice("agent.args")...)
	ctrl := loop.NewController(cfg, r, st, archive, ui)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	res, err := ctrl.Run(ctx)
	return finishLoop(res, err)
}

// finishLoop reports the outcome and exits with the matching code.
// Lock release and state persistence have already happened inside the
// controller by the time this runs.
func finishLoop(res loop.Result, err error) error {
	var already *lock.ErrAlreadyRunning
	if errors.As(err, &already) {
		ui.Error("%v", already)
		os.Exit(exitAlreadyRunning)
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case loop.OutcomeCompleted:
		ui.Success("Session %s completed after %d iterations (cost $%.4f)", res.SessionID, res.Iterations, res.TotalCostUSD)
		return nil
	case loop.OutcomeInterrupted:
		ui.Error("Session %s interrupted at iteration %d", res.SessionID, res.Iterations)
		os.Exit(exitInterrupted)
	case loop.OutcomeNoActionableTasks:
		ui.Warning("Session %s stopped: no actionable tasks (%d remaining)", res.SessionID, res.Remaining)
		os.Exit(exitLimitReached)
	default:
		msg := fmt.Sprintf("Session %s stopped: %s", res.SessionID, res.StopReason)
		if res.Remaining > 0 {
			msg += fmt.Sprintf(" (%d items remaining)", res.Remaining)
		}
		ui.Warning("%s", msg)
		os.Exit(exitLimitReached)
	}
	return nil
}

func logsDir(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return viper.GetString("logs_dir")
}

func stringOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func intOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func delayOr(v time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return viper.GetDuration("loop.delay")
}
