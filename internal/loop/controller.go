package loop

import (
	"context"
	"fmt"
	"time"

	"looper/internal/detect"
	"looper/internal/limits"
	"looper/internal/lock"
	"looper/internal/models"
	"looper/internal/output"
	"looper/internal/runner"
	"looper/internal/state"
	"looper/internal/store"
)

// Outcome is the terminal result of a loop run.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeLimitReached      Outcome = "limit_reached"
	OutcomeInterrupted       Outcome = "interrupted"
	OutcomeNoActionableTasks Outcome = "no_actionable_tasks"
)

// Result summarizes a finished run.
type Result struct {
	Outcome      Outcome
	StopReason   limits.StopReason
	Iterations   int
	Remaining    int // unfinished checklist items, todo mode only
	TotalCostUSD float64
	SessionID    string
}

// Config holds the parameters for one task-mode run.
type Config struct {
	Task      string
	Phrase    string
	Threshold int
	Limits    limits.Limits
	WorkDir   string
	Delay     time.Duration
}

// Controller drives the iteration loop: acquire lock, then repeat
// {check limits, prompt, invoke agent, update cost, check completion,
// persist} until completion, limit exhaustion, or interruption.
// Execution is strictly sequential; the agent call blocks.
type Controller struct {
	cfg     Config
	runner  runner.Runner
	state   *state.Store
	archive store.Store // optional, best-effort history
	ui      *output.UI
}

// NewController assembles a controller. archive may be nil.
func NewController(cfg Config, r runner.Runner, st *state.Store, archive store.Store, ui *output.UI) *Controller {
	if cfg.Phrase == "" {
		cfg.Phrase = detect.DefaultPhrase
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = detect.DefaultThreshold
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	return &Controller{cfg: cfg, runner: r, state: st, archive: archive, ui: ui}
}

// Run executes the loop until a terminal outcome. The lock is acquired
// before any state is created and released on every exit path; the
// final session state is persisted before return regardless of how the
// loop ends. Cancel ctx (e.g. via signal.NotifyContext) to interrupt.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	lk, err := lock.Acquire(c.state.Dir())
	if err != nil {
		return Result{}, err
	}

	sess := models.NewSession(c.cfg.Task, c.cfg.WorkDir)
	detector := detect.New(c.cfg.Phrase, c.cfg.Threshold)

	res := Result{SessionID: sess.ID}
	defer func() {
		sess.Finalize(statusFor(res.Outcome))
		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Error("persist final state: %v", err)
		}
		c.logEvent(sess, finalLevel(res.Outcome), fmt.Sprintf("session %s: %s", sess.ID, res.Outcome), map[string]any{
			"outcome":     string(res.Outcome),
			"stop_reason": string(res.StopReason),
			"total_cost":  sess.TotalCostUSD,
		})
		archiveSession(ctx, c.archive, sess, "run", c.state.Dir())
		if err := lk.Release(); err != nil {
			c.ui.Error("release lock: %v", err)
		}
	}()

	if err := c.state.SaveSession(sess); err != nil {
		res.Outcome = OutcomeInterrupted
		return res, fmt.Errorf("persist session state: %w", err)
	}
	c.logEvent(sess, models.EventInfo, "session started", map[string]any{
		"task":           c.cfg.Task,
		"phrase":         c.cfg.Phrase,
		"threshold":      c.cfg.Threshold,
		"max_iterations": c.cfg.Limits.MaxIterations,
	})
	c.ui.Info("Session %s started (max %d iterations)", sess.ID, c.cfg.Limits.MaxIterations)

	for {
		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			return res, nil
		}

		ok, reason := limits.Evaluate(sess, c.cfg.Limits)
		if !ok {
			res.Outcome = OutcomeLimitReached
			res.StopReason = reason
			c.ui.Warning("Stopping: %s limit reached", reason)
			return res, nil
		}

		sess.Iteration++
		res.Iterations = sess.Iteration
		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Warning("persist state: %v", err)
		}

		prompt := buildTaskPrompt(c.cfg.Task, c.cfg.Phrase, sess.Iteration)
		c.ui.VerboseLog("iteration %d: invoking agent", sess.Iteration)

		rres, err := c.runner.Run(ctx, prompt, c.cfg.WorkDir)
		if err != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeInterrupted
				return res, nil
			}
			// Transient invocation failures are recoverable; retry next pass.
			c.ui.Warning("iteration %d: agent invocation failed: %v", sess.Iteration, err)
			c.logEvent(sess, models.EventWarning, "agent invocation failed", map[string]any{"error": err.Error()})
			if !c.pause(ctx) {
				res.Outcome = OutcomeInterrupted
				return res, nil
			}
			continue
		}

		costDelta := detect.ExtractCost(rres.Output)
		sess.TotalCostUSD += costDelta
		res.TotalCostUSD = sess.TotalCostUSD

		done, count := detector.Check(rres.Output)
		sess.CompletionCount = count

		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Warning("persist state: %v", err)
		}
		c.logEvent(sess, models.EventInfo, "iteration finished", map[string]any{
			"exit_code":        rres.ExitCode,
			"cost_delta":       costDelta,
			"phrase_found":     count > 0,
			"completion_count": count,
		})

		if rres.ExitCode != 0 {
			// Agent failures are expected to be transient; the next pass
			// retries with a continue-from-where-you-left-off prompt.
			c.ui.Warning("iteration %d: agent exited with code %d", sess.Iteration, rres.ExitCode)
			c.logEvent(sess, models.EventWarning, "agent exited non-zero", map[string]any{"exit_code": rres.ExitCode})
		}

		if done {
			res.Outcome = OutcomeCompleted
			c.ui.Success("Completion phrase confirmed %d times in a row after %d iterations", count, sess.Iteration)
			return res, nil
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			return res, nil
		}

		// Short fixed delay so failing iterations don't tight-loop.
		if !c.pause(ctx) {
			res.Outcome = OutcomeInterrupted
			return res, nil
		}
	}
}

// pause sleeps for the configured inter-iteration delay. Returns false
// if ctx was cancelled while waiting.
func (c *Controller) pause(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Controller) logEvent(sess *models.Session, level models.EventLevel, msg string, fields map[string]any) {
	ev := models.Event{
		Level:     level,
		Message:   msg,
		SessionID: sess.ID,
		Iteration: sess.Iteration,
		Fields:    fields,
	}
	if err := c.state.Append(ev); err != nil {
		c.ui.Warning("append session log: %v", err)
	}
}

// statusFor maps a loop outcome to the persisted session status.
func statusFor(o Outcome) models.SessionStatus {
	switch o {
	case OutcomeCompleted:
		return models.SessionStatusCompleted
	case OutcomeLimitReached, OutcomeNoActionableTasks:
		// Blocked-only checklists are a non-success stop, like an
		// exhausted budget: work remains but the loop cannot proceed.
		return models.SessionStatusLimitReached
	default:
		return models.SessionStatusInterrupted
	}
}

func finalLevel(o Outcome) models.EventLevel {
	switch o {
	case OutcomeCompleted:
		return models.EventSuccess
	case OutcomeInterrupted:
		return models.EventError
	default:
		return models.EventWarning
	}
}

// archiveSession records a finished session in the history store,
// best-effort: archive failures never change the run outcome.
func archiveSession(ctx context.Context, archive store.Store, sess *models.Session, mode, logDir string) {
	if archive == nil {
		return
	}
	ended := sess.LastUpdate
	_ = archive.CreateSession(context.WithoutCancel(ctx), &models.ArchivedSession{
		SessionID:       sess.ID,
		Mode:            mode,
		Task:            sess.Task,
		Status:          sess.Status,
		Iterations:      sess.Iteration,
		CompletionCount: sess.CompletionCount,
		TotalCostUSD:    sess.TotalCostUSD,
		WorkDir:         sess.WorkDir,
		LogDir:          logDir,
		StartedAt:       sess.StartedAt,
		EndedAt:         &ended,
	})
}
