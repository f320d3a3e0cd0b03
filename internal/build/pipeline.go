// Package build runs the toolchain commands that produce a runnable gateway
// after a checkout.
package build

import (
	"context"
	"time"

	"github.com/google/shlex"

	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// Step is one named toolchain command.
type Step struct {
	Name string
	Args []string
}

// ParseStep tokenizes a configured command string into a step. Quoting
// follows shell rules so a config can say `npm run build -- --flag="a b"`.
func ParseStep(name, command string) (Step, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return Step{}, errs.Ef(errs.Build, "build.ParseStep", "invalid %s command %q: %v", name, command, err)
	}
	if len(args) == 0 {
		return Step{}, errs.Ef(errs.Build, "build.ParseStep", "empty %s command", name)
	}
	return Step{Name: name, Args: args}, nil
}

// Pipeline runs build steps in fixed order in the repository root.
type Pipeline struct {
	runner  run.Runner
	workdir string
	steps   []Step
}

// NewPipeline creates a pipeline over the given steps. Order is preserved;
// the first failing step aborts the rest.
func NewPipeline(runner run.Runner, workdir string, steps []Step) *Pipeline {
	return &Pipeline{runner: runner, workdir: workdir, steps: steps}
}

// Run executes every step with the time budget reported by remaining. A step
// never starts once the budget is exhausted, and a running step that exceeds
// it is killed and reported as a timeout.
func (p *Pipeline) Run(ctx context.Context, remaining func() time.Duration) error {
	const op = "build.Run"
	for _, step := range p.steps {
		budget := remaining()
		if budget <= 0 {
			return errs.Ef(errs.Timeout, op, "no time left to run %s", step.Name)
		}
		outcome, err := p.runner.Run(ctx, run.Invocation{
			Args:    step.Args,
			Dir:     p.workdir,
			Timeout: budget,
		})
		if err != nil {
			return errs.Ef(errs.Build, op, "%s: %v", step.Name, err)
		}
		if outcome.TimedOut {
			return errs.Ef(errs.Timeout, op, "%s timed out", step.Name).WithStderr(outcome.Stderr)
		}
		if !outcome.Success() {
			return errs.Ef(errs.Build, op, "%s exited %d", step.Name, outcome.ExitCode).WithStderr(outcome.Stderr)
		}
	}
	return nil
}
