// Package run executes external commands on behalf of the update procedure.
//
// The Runner interface is the single call-out boundary of the updater: every
// git, install, build, and health-check command goes through it, so tests can
// substitute a scripted responder and never spawn a real process.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Invocation describes one external command.
type Invocation struct {
	// Args is the full argument vector including the program name.
	Args []string
	// Dir is the working directory for the command. Empty means the
	// process's current directory.
	Dir string
	// Timeout bounds this single command. Zero means no per-call limit
	// beyond whatever deadline the context carries.
	Timeout time.Duration
}

// Outcome is the captured result of a command that ran to completion or was
// killed by its deadline. A nonzero ExitCode is a normal outcome, never an
// error.
type Outcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// TimedOut is set when the command was killed because its deadline
	// expired. ExitCode is nonzero in that case.
	TimedOut bool
}

// Success reports whether the command exited zero.
func (o Outcome) Success() bool { return o.ExitCode == 0 }

// Runner executes one external command. Implementations return an error only
// for infrastructure-level inability to run the command (e.g. the program
// does not exist); a command that ran and failed is reported through Outcome.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// NewExecRunner creates a Runner that spawns real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the invocation. A deadline (per-call timeout or context
// deadline) kills the underlying process and yields a timeout-flavored
// Outcome rather than an error, so no process outlives the call.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	if len(inv.Args) == 0 {
		return Outcome{}, errors.New("empty command")
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// A deadline kill surfaces as an ExitError (or start failure);
		// check the context first so it is reported as a timeout.
		if runCtx.Err() != nil {
			return Outcome{
				Stdout:   stdout.String(),
				Stderr:   fmt.Sprintf("timed out: %v", runCtx.Err()),
				ExitCode: -1,
				TimedOut: true,
			}, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
			}, nil
		}
		// Could not spawn the process at all.
		return Outcome{}, fmt.Errorf("failed to run %q: %w", inv.Args[0], err)
	}

	return Outcome{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
