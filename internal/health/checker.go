// Package health runs the post-update diagnostic for the gateway.
package health

import (
	"context"
	"time"

	"github.com/patrick-slimelab/openclaw/internal/build"
	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// Checker runs a single non-interactive diagnostic command. It exists to
// catch updates that checked out and built cleanly but produced a
// non-functional deployment, e.g. missing runtime configuration.
type Checker struct {
	runner  run.Runner
	workdir string
	step    build.Step
}

// NewChecker creates a Checker for the given diagnostic step.
func NewChecker(runner run.Runner, workdir string, step build.Step) *Checker {
	return &Checker{runner: runner, workdir: workdir, step: step}
}

// Check runs the diagnostic within the given budget. A nonzero exit is a
// health-check failure carrying the command's stderr.
func (c *Checker) Check(ctx context.Context, budget time.Duration) error {
	const op = "health.Check"
	if budget <= 0 {
		return errs.Ef(errs.Timeout, op, "no time left to run %s", c.step.Name)
	}
	outcome, err := c.runner.Run(ctx, run.Invocation{
		Args:    c.step.Args,
		Dir:     c.workdir,
		Timeout: budget,
	})
	if err != nil {
		return errs.Ef(errs.HealthCheck, op, "%s: %v", c.step.Name, err)
	}
	if outcome.TimedOut {
		return errs.Ef(errs.Timeout, op, "%s timed out", c.step.Name).WithStderr(outcome.Stderr)
	}
	if !outcome.Success() {
		return errs.Ef(errs.HealthCheck, op, "%s exited %d", c.step.Name, outcome.ExitCode).WithStderr(outcome.Stderr)
	}
	return nil
}
