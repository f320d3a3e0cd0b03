// Package updater implements the gateway self-update procedure: resolve the
// target release, detach the checkout there, restore or rebuild the protected
// asset directory, rebuild, health-check, and verify. Anything that fails
// past the checkout rolls the tree back to the originating commit.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrick-slimelab/openclaw/internal/assets"
	"github.com/patrick-slimelab/openclaw/internal/build"
	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/gitrepo"
	"github.com/patrick-slimelab/openclaw/internal/health"
	"github.com/patrick-slimelab/openclaw/internal/lockfile"
	"github.com/patrick-slimelab/openclaw/internal/release"
)

// rollbackGrace bounds the rollback commands. The overall deadline may be the
// very reason a rollback is running, so it cannot govern the rollback too.
const rollbackGrace = 2 * time.Minute

// Orchestrator drives one update attempt.
type Orchestrator struct {
	req Request
}

// New validates the request, applies defaults, and returns an Orchestrator.
func New(req Request) (*Orchestrator, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.applyDefaults()
	return &Orchestrator{req: req}, nil
}

// Run performs the update attempt and always returns a terminal Result. The
// originating commit is captured before any mutating command and is the
// rollback target for every post-checkout failure.
func (o *Orchestrator) Run(ctx context.Context) Result {
	log := o.req.Logger

	deadline := time.Now().Add(o.req.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	remaining := func() time.Duration { return time.Until(deadline) }

	// The working directory may be anywhere inside the checkout, but every
	// repository command must run from the root: the cleanliness excludes
	// and the asset restore are root-relative pathspecs.
	insp, root, err := gitrepo.NewInspector(o.req.Runner, o.req.WorkDir).AtRoot(ctx)
	if err != nil {
		return o.errorResult("", err)
	}

	lock, err := lockfile.Acquire(root)
	if err != nil {
		return o.errorResult("", err)
	}
	defer lock.Release()

	// Preflight. Nothing has been mutated yet, so failures here are
	// terminal without rollback.
	from, err := insp.CurrentCommit(ctx)
	if err != nil {
		return o.errorResult("", err)
	}
	// The lock file lives at the repository root, so it is excluded from
	// the cleanliness check along with the protected assets.
	clean, err := insp.IsClean(ctx, o.req.AssetDir, lockfile.LockFileName)
	if err != nil {
		return o.errorResult(from, err)
	}
	if !clean {
		return o.errorResult(from, errs.Ef(errs.RepositoryState, "updater.Preflight",
			"working tree has uncommitted changes outside %s", o.req.AssetDir))
	}
	log.Debug("preflight complete", "root", root, "commit", from)

	// Fetching.
	if err := insp.FetchAll(ctx); err != nil {
		return o.errorResult(from, err)
	}

	// PlanningVersion.
	plan, restorer, err := o.plan(ctx, insp, root, from)
	if err != nil {
		return o.errorResult(from, err)
	}
	if plan.UpToDate {
		log.Info("already at target version", "tag", plan.TargetTag, "commit", from)
		return Result{
			Status:     StatusNoOp,
			From:       from,
			To:         from,
			Message:    fmt.Sprintf("already at %s", plan.TargetTag),
			RollbackOK: true,
		}
	}
	log.Info("resolved update target",
		"tag", plan.TargetTag, "commit", plan.TargetCommit, "asset_tracked", plan.AssetTracked)

	if remaining() <= 0 {
		return o.errorResult(from, errs.Ef(errs.Timeout, "updater.Run", "time budget exhausted before checkout"))
	}

	// CheckingOut. On failure HEAD is unchanged, so there is still nothing
	// to roll back.
	if err := insp.CheckoutDetached(ctx, plan.TargetCommit); err != nil {
		return o.errorResult(from, err)
	}

	// Every failure from here on rolls back to the originating commit.

	// RestoringAssets.
	if plan.AssetTracked {
		if err := restorer.Restore(ctx, plan.TargetCommit); err != nil {
			return o.rollback(insp, restorer, from, err)
		}
	} else {
		log.Debug("asset directory not tracked at target, leaving it for the build",
			"dir", o.req.AssetDir)
	}

	// Building.
	pipeline := build.NewPipeline(o.req.Runner, root, o.req.BuildSteps)
	if err := pipeline.Run(ctx, remaining); err != nil {
		return o.rollback(insp, restorer, from, err)
	}

	// HealthChecking.
	checker := health.NewChecker(o.req.Runner, root, o.req.HealthStep)
	if err := checker.Check(ctx, remaining()); err != nil {
		return o.rollback(insp, restorer, from, err)
	}

	// VerifyingResult.
	got, err := insp.CurrentCommit(ctx)
	if err != nil {
		return o.rollback(insp, restorer, from, err)
	}
	if got != plan.TargetCommit {
		return o.rollback(insp, restorer, from, errs.Ef(errs.RepositoryState, "updater.Verify",
			"HEAD is %s after update, expected %s", got, plan.TargetCommit))
	}

	restorer.Discard()
	log.Info("update complete", "from", from, "to", got, "tag", plan.TargetTag)
	return Result{
		Status:     StatusOK,
		From:       from,
		To:         got,
		Message:    fmt.Sprintf("updated to %s", plan.TargetTag),
		RollbackOK: true,
	}
}

// Plan resolves the update decision without mutating the working tree. The
// fetch still runs so the decision reflects the remote's current tags.
func (o *Orchestrator) Plan(ctx context.Context) (Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, o.req.Timeout)
	defer cancel()

	insp, root, err := gitrepo.NewInspector(o.req.Runner, o.req.WorkDir).AtRoot(ctx)
	if err != nil {
		return Plan{}, err
	}

	// The fetch mutates refs, so planning holds the same lock an update
	// does and never interleaves with one.
	lock, err := lockfile.Acquire(root)
	if err != nil {
		return Plan{}, err
	}
	defer lock.Release()

	from, err := insp.CurrentCommit(ctx)
	if err != nil {
		return Plan{}, err
	}
	if err := insp.FetchAll(ctx); err != nil {
		return Plan{}, err
	}
	plan, _, err := o.plan(ctx, insp, root, from)
	return plan, err
}

// plan resolves the target tag and commit and probes the protected asset
// directory. The "already at the only available tag" case downgrades a
// resolution failure to an up-to-date plan.
func (o *Orchestrator) plan(ctx context.Context, insp *gitrepo.Inspector, root, from string) (Plan, *assets.Restorer, error) {
	restorer := assets.NewRestorer(insp, root, o.req.AssetDir, o.req.AssetEntry)

	tags, err := insp.ListTags(ctx, o.req.TagPattern)
	if err != nil {
		return Plan{}, nil, err
	}
	target, err := release.Resolve(tags, o.req.Channel)
	if err != nil {
		if len(tags) == 1 {
			if c, cerr := insp.CommitForRef(ctx, tags[0]); cerr == nil && c == from {
				return Plan{From: from, TargetTag: tags[0], TargetCommit: from, UpToDate: true}, restorer, nil
			}
		}
		return Plan{}, nil, err
	}
	targetCommit, err := insp.CommitForRef(ctx, target)
	if err != nil {
		return Plan{}, nil, err
	}
	if targetCommit == from {
		return Plan{From: from, TargetTag: target, TargetCommit: from, UpToDate: true}, restorer, nil
	}
	tracked, err := restorer.TrackedAt(ctx, targetCommit)
	if err != nil {
		return Plan{}, nil, err
	}
	return Plan{
		From:         from,
		TargetTag:    target,
		TargetCommit: targetCommit,
		AssetTracked: tracked,
	}, restorer, nil
}

// rollback restores the originating commit and the asset snapshot, then
// reports the original failure. A failed rollback is reported distinctly: it
// is the one condition that leaves the deployment in an indeterminate state.
func (o *Orchestrator) rollback(insp *gitrepo.Inspector, restorer *assets.Restorer, from string, cause error) Result {
	log := o.req.Logger
	log.Warn("update failed, rolling back", "to", from, "cause", cause)

	// The attempt's deadline may be the very failure being handled, so the
	// rollback runs under its own grace period.
	ctx, cancel := context.WithTimeout(context.Background(), rollbackGrace)
	defer cancel()

	rerr := insp.CheckoutDetached(ctx, from)
	if rerr == nil {
		rerr = restorer.Rollback()
	}

	res := o.errorResult(from, cause)
	if rerr != nil {
		log.Error("rollback failed, manual intervention required", "commit", from, "error", rerr)
		res.RollbackOK = false
		res.RollbackFailure = &Failure{Kind: errs.RollbackFailed, Message: rerr.Error()}
		return res
	}

	restorer.Discard()
	log.Info("rolled back", "commit", from)
	res.Message += fmt.Sprintf("; working tree restored to %s", shortCommit(from))
	return res
}

// errorResult builds a terminal error Result from a classified failure. The
// caller flips RollbackOK off when a rollback was attempted and failed.
func (o *Orchestrator) errorResult(from string, err error) Result {
	kind := errs.KindOf(err)
	if kind == "" {
		kind = errs.RepositoryState
	}
	failure := &Failure{Kind: kind, Message: err.Error()}
	var ce *errs.Error
	if errors.As(err, &ce) {
		failure.Stderr = ce.Stderr
	}
	return Result{
		Status:     StatusError,
		From:       from,
		Message:    err.Error(),
		Failure:    failure,
		RollbackOK: true,
	}
}
