// Package gitrepo answers git-level questions about the gateway checkout.
package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// Inspector runs git queries and mutations in one working directory. All
// commands go through the injected Runner so tests never touch a real
// repository.
type Inspector struct {
	runner  run.Runner
	workdir string
}

// NewInspector creates an Inspector rooted at workdir.
func NewInspector(runner run.Runner, workdir string) *Inspector {
	return &Inspector{runner: runner, workdir: workdir}
}

// git runs one git command in the working directory. Infrastructure failures
// and deadline kills are classified here; nonzero exits are returned to the
// caller for per-operation classification.
func (i *Inspector) git(ctx context.Context, op string, args ...string) (run.Outcome, error) {
	argv := append([]string{"git"}, args...)
	outcome, err := i.runner.Run(ctx, run.Invocation{Args: argv, Dir: i.workdir})
	if err != nil {
		return run.Outcome{}, errs.E(errs.RepositoryState, op, err)
	}
	if outcome.TimedOut {
		return outcome, errs.Ef(errs.Timeout, op, "git %s timed out", args[0]).WithStderr(outcome.Stderr)
	}
	return outcome, nil
}

// Root resolves the top-level directory of the repository containing the
// working directory.
func (i *Inspector) Root(ctx context.Context) (string, error) {
	const op = "gitrepo.Root"
	outcome, err := i.git(ctx, op, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	if !outcome.Success() {
		return "", errs.Ef(errs.NotAGitRepository, op, "%s is not inside a git repository", i.workdir).WithStderr(outcome.Stderr)
	}
	return strings.TrimSpace(outcome.Stdout), nil
}

// AtRoot resolves the repository root and returns an Inspector rooted there,
// along with the root path. Pathspec-relative operations (cleanliness
// excludes, asset restores) must run from the root so they cover the whole
// tree regardless of which subdirectory the caller invoked from.
func (i *Inspector) AtRoot(ctx context.Context) (*Inspector, string, error) {
	root, err := i.Root(ctx)
	if err != nil {
		return nil, "", err
	}
	if root == i.workdir {
		return i, root, nil
	}
	return NewInspector(i.runner, root), root, nil
}

// CurrentCommit resolves the commit HEAD points at.
func (i *Inspector) CurrentCommit(ctx context.Context) (string, error) {
	const op = "gitrepo.CurrentCommit"
	outcome, err := i.git(ctx, op, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	if !outcome.Success() {
		return "", errs.Ef(errs.RepositoryState, op, "failed to resolve HEAD").WithStderr(outcome.Stderr)
	}
	return strings.TrimSpace(outcome.Stdout), nil
}

// CommitForRef resolves the commit a ref (tag, branch, commit id) points at.
func (i *Inspector) CommitForRef(ctx context.Context, ref string) (string, error) {
	const op = "gitrepo.CommitForRef"
	outcome, err := i.git(ctx, op, "rev-list", "-n", "1", ref)
	if err != nil {
		return "", err
	}
	if !outcome.Success() {
		return "", errs.Ef(errs.RepositoryState, op, "failed to resolve ref %q", ref).WithStderr(outcome.Stderr)
	}
	return strings.TrimSpace(outcome.Stdout), nil
}

// IsClean reports whether the working tree has no uncommitted changes,
// ignoring the given relative paths. Protected build-artifact directories are
// passed here so locally built assets never block an update.
func (i *Inspector) IsClean(ctx context.Context, excludePaths ...string) (bool, error) {
	const op = "gitrepo.IsClean"
	args := []string{"status", "--porcelain"}
	if len(excludePaths) > 0 {
		args = append(args, "--", ".")
		for _, p := range excludePaths {
			args = append(args, ":(exclude)"+p)
		}
	}
	outcome, err := i.git(ctx, op, args...)
	if err != nil {
		return false, err
	}
	if !outcome.Success() {
		return false, errs.Ef(errs.RepositoryState, op, "git status failed").WithStderr(outcome.Stderr)
	}
	return strings.TrimSpace(outcome.Stdout) == "", nil
}

// IsTrackedAtCommit reports whether relPath exists in the tree of the given
// commit. Any nonzero exit, including "object not found", means not tracked;
// a locally built, git-ignored directory must never turn this into a hard
// error.
func (i *Inspector) IsTrackedAtCommit(ctx context.Context, commit, relPath string) (bool, error) {
	const op = "gitrepo.IsTrackedAtCommit"
	outcome, err := i.git(ctx, op, "cat-file", "-e", commit+":"+relPath)
	if err != nil {
		return false, err
	}
	return outcome.Success(), nil
}

// ListTags returns tags matching the glob pattern, in the version-aware
// descending order produced by git itself. Callers must preserve this order;
// lexical re-sorting would misplace v1.10.0 relative to v1.9.0.
func (i *Inspector) ListTags(ctx context.Context, pattern string) ([]string, error) {
	const op = "gitrepo.ListTags"
	outcome, err := i.git(ctx, op, "tag", "--list", pattern, "--sort=-v:refname")
	if err != nil {
		return nil, err
	}
	if !outcome.Success() {
		return nil, errs.Ef(errs.RepositoryState, op, "git tag --list failed").WithStderr(outcome.Stderr)
	}
	var tags []string
	for _, line := range strings.Split(outcome.Stdout, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// FetchAll fetches all remote refs and tags, pruning stale ones. A failure is
// retried once before being surfaced as a network error.
func (i *Inspector) FetchAll(ctx context.Context) error {
	const op = "gitrepo.FetchAll"
	var lastStderr string
	for attempt := 0; attempt < 2; attempt++ {
		outcome, err := i.git(ctx, op, "fetch", "--all", "--tags", "--prune")
		if err != nil {
			if errs.IsKind(err, errs.Timeout) {
				return err
			}
			lastStderr = err.Error()
			continue
		}
		if outcome.Success() {
			return nil
		}
		lastStderr = outcome.Stderr
	}
	return errs.Ef(errs.Network, op, "git fetch failed after retry").WithStderr(lastStderr)
}

// CheckoutDetached detaches HEAD at the given ref.
func (i *Inspector) CheckoutDetached(ctx context.Context, ref string) error {
	const op = "gitrepo.CheckoutDetached"
	outcome, err := i.git(ctx, op, "checkout", "--detach", ref)
	if err != nil {
		return err
	}
	if !outcome.Success() {
		return errs.Ef(errs.Checkout, op, "failed to check out %q", ref).WithStderr(outcome.Stderr)
	}
	return nil
}

// RestorePath restores relPath's contents from the given ref into the working
// tree without moving HEAD. Only call this when IsTrackedAtCommit reported
// the path present at that ref.
func (i *Inspector) RestorePath(ctx context.Context, ref, relPath string) error {
	const op = "gitrepo.RestorePath"
	outcome, err := i.git(ctx, op, "checkout", ref, "--", relPath)
	if err != nil {
		return err
	}
	if !outcome.Success() {
		return errs.Ef(errs.AssetRestore, op, "failed to restore %q from %q", relPath, ref).WithStderr(outcome.Stderr)
	}
	return nil
}

// State is a point-in-time description of the repository, used by the status
// report.
type State struct {
	Root   string `json:"root" yaml:"root"`
	Commit string `json:"commit" yaml:"commit"`
	Clean  bool   `json:"clean" yaml:"clean"`
}

func (s State) String() string {
	clean := "dirty"
	if s.Clean {
		clean = "clean"
	}
	return fmt.Sprintf("%s @ %s (%s)", s.Root, s.Commit, clean)
}

// Describe gathers the repository state, ignoring the given paths for the
// cleanliness check.
func (i *Inspector) Describe(ctx context.Context, excludePaths ...string) (State, error) {
	root, err := i.Root(ctx)
	if err != nil {
		return State{}, err
	}
	commit, err := i.CurrentCommit(ctx)
	if err != nil {
		return State{}, err
	}
	clean, err := i.IsClean(ctx, excludePaths...)
	if err != nil {
		return State{}, err
	}
	return State{Root: root, Commit: commit, Clean: clean}, nil
}
