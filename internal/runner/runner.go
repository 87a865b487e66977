package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is what the loop sees of one agent invocation: combined output
// and an exit code. The agent is an opaque black box beyond that.
type Result struct {
	Output   string
	ExitCode int
}

// Runner invokes the external task-execution agent once with a prompt.
// The call blocks until the agent exits; duration limits are enforced
// between iterations, not by interrupting a running invocation.
type Runner interface {
	Run(ctx context.Context, prompt, workDir string) (Result, error)
}

// CLIRunner shells out to an agent CLI (Claude Code by default),
// passing the prompt in print mode and capturing stdout+stderr combined.
type CLIRunner struct {
	Command string
	Args    []string
}

// NewCLIRunner creates a runner for the given agent command. Extra args
// are inserted before the prompt.
func NewCLIRunner(command string, args ...string) *CLIRunner {
	return &CLIRunner{Command: command, Args: args}
}

// CheckAgent verifies the agent binary is on PATH. Run this before any
// state is created so a missing dependency aborts cleanly.
func CheckAgent(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("task agent %q not found in PATH: %w", command, err)
	}
	return nil
}

// Run executes the agent synchronously in workDir. A non-zero agent
// exit is reported through Result.ExitCode, not as an error: per-
// iteration failures are expected and the loop retries. The returned
// error covers only failures to start the process at all.
func (r *CLIRunner) Run(ctx context.Context, prompt, workDir string) (Result, error) {
	args := append(append([]string{}, r.Args...), "-p", prompt)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = workDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	res := Result{Output: buf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("invoke agent %q: %w", r.Command, err)
	}
	return res, nil
}
