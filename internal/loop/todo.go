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
	"looper/internal/todo"
)

// TodoConfig holds the parameters for a TODO-driven run. This variant
// has no cost or duration budget, only an iteration cap, and a single
// phrase occurrence is enough to declare success.
type TodoConfig struct {
	ChecklistPath string
	Phrase        string
	MaxIterations int
	WorkDir       string
	Delay         time.Duration
}

// TodoController is the checklist-driven loop variant. Work selection
// comes from the checklist instead of a single task description; the
// external agent, not the controller, rewrites the checklist between
// iterations.
type TodoController struct {
	cfg     TodoConfig
	runner  runner.Runner
	state   *state.Store
	archive store.Store
	ui      *output.UI
}

// NewTodoController assembles a TODO-mode controller. archive may be nil.
func NewTodoController(cfg TodoConfig, r runner.Runner, st *state.Store, archive store.Store, ui *output.UI) *TodoController {
	if cfg.Phrase == "" {
		cfg.Phrase = detect.DefaultPhrase
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	return &TodoController{cfg: cfg, runner: r, state: st, archive: archive, ui: ui}
}

// Run executes the checklist loop until every item is done, nothing is
// actionable, the iteration cap is hit, or ctx is cancelled. Lock and
// final state handling mirror Controller.Run.
func (c *TodoController) Run(ctx context.Context) (Result, error) {
	lk, err := lock.Acquire(c.state.Dir())
	if err != nil {
		return Result{}, err
	}

	sess := models.NewSession("checklist: "+c.cfg.ChecklistPath, c.cfg.WorkDir)
	detector := detect.New(c.cfg.Phrase, 1)

	res := Result{SessionID: sess.ID}
	defer func() {
		sess.Finalize(statusFor(res.Outcome))
		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Error("persist final state: %v", err)
		}
		c.logEvent(sess, finalLevel(res.Outcome), fmt.Sprintf("session %s: %s", sess.ID, res.Outcome), map[string]any{
			"outcome":   string(res.Outcome),
			"remaining": res.Remaining,
		})
		archiveSession(ctx, c.archive, sess, "todo", c.state.Dir())
		if err := lk.Release(); err != nil {
			c.ui.Error("release lock: %v", err)
		}
	}()

	if err := c.state.SaveSession(sess); err != nil {
		res.Outcome = OutcomeInterrupted
		return res, fmt.Errorf("persist session state: %w", err)
	}
	c.logEvent(sess, models.EventInfo, "todo session started", map[string]any{
		"checklist":      c.cfg.ChecklistPath,
		"max_iterations": c.cfg.MaxIterations,
	})
	c.ui.Info("Session %s started on %s", sess.ID, c.cfg.ChecklistPath)

	for {
		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			return res, nil
		}

		items, err := todo.ParseFile(c.cfg.ChecklistPath)
		if err != nil {
			res.Outcome = OutcomeInterrupted
			return res, err
		}
		res.Remaining = todo.Remaining(items)

		if res.Remaining == 0 {
			res.Outcome = OutcomeCompleted
			c.ui.Success("Checklist complete after %d iterations", sess.Iteration)
			return res, nil
		}

		next := todo.SelectNext(items)
		if next == nil {
			// Only blocked items remain; invoking the agent would spin.
			res.Outcome = OutcomeNoActionableTasks
			c.ui.Warning("No actionable tasks: %d remaining items are blocked", res.Remaining)
			return res, nil
		}

		ok, reason := limits.Evaluate(sess, limits.Limits{MaxIterations: c.cfg.MaxIterations})
		if !ok {
			res.Outcome = OutcomeLimitReached
			res.StopReason = reason
			c.ui.Warning("Stopping: %s limit reached, %d items remaining", reason, res.Remaining)
			return res, nil
		}

		sess.Iteration++
		res.Iterations = sess.Iteration
		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Warning("persist state: %v", err)
		}

		prompt := buildTodoPrompt(c.cfg.ChecklistPath, next.Text, c.cfg.Phrase)
		c.ui.VerboseLog("iteration %d: working item %q", sess.Iteration, next.Text)

		rres, err := c.runner.Run(ctx, prompt, c.cfg.WorkDir)
		if err != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeInterrupted
				return res, nil
			}
			c.ui.Warning("iteration %d: agent invocation failed: %v", sess.Iteration, err)
			c.logEvent(sess, models.EventWarning, "agent invocation failed", map[string]any{"error": err.Error()})
			if !c.pause(ctx) {
				res.Outcome = OutcomeInterrupted
				return res, nil
			}
			continue
		}

		done, count := detector.Check(rres.Output)
		sess.CompletionCount = count
		if err := c.state.SaveSession(sess); err != nil {
			c.ui.Warning("persist state: %v", err)
		}
		c.logEvent(sess, models.EventInfo, "iteration finished", map[string]any{
			"item":         next.Text,
			"exit_code":    rres.ExitCode,
			"phrase_found": count > 0,
		})

		if rres.ExitCode != 0 {
			c.ui.Warning("iteration %d: agent exited with code %d", sess.Iteration, rres.ExitCode)
			c.logEvent(sess, models.EventWarning, "agent exited non-zero", map[string]any{"exit_code": rres.ExitCode})
		}

		if done {
			res.Outcome = OutcomeCompleted
			c.ui.Success("Agent reported the checklist complete after %d iterations", sess.Iteration)
			return res, nil
		}

		if !c.pause(ctx) {
			res.Outcome = OutcomeInterrupted
			return res, nil
		}
	}
}

func (c *TodoController) pause(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *TodoController) logEvent(sess *models.Session, level models.EventLevel, msg string, fields map[string]any) {
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
