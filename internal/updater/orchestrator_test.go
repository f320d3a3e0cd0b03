package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrick-slimelab/openclaw/internal/build"
	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/lockfile"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// fixture scripts the happy path: repo at abc123, one tag v1.0.1 at def456,
// asset directory absent from the target, all toolchain commands succeed.
// Individual tests override single commands to carve out their failure.
type fixture struct {
	script  *run.Script
	workdir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{script: run.NewScript(), workdir: t.TempDir()}

	f.script.StubOK(f.workdir+"\n", "git", "rev-parse", "--show-toplevel")
	f.script.StubOK("abc123\n", "git", "rev-parse", "HEAD")
	f.script.StubOK("", "git", "status", "--porcelain", "--", ".", ":(exclude)dist", ":(exclude).openclaw-update.lock")
	f.script.StubOK("", "git", "fetch", "--all", "--tags", "--prune")
	f.script.StubOK("v1.0.1\n", "git", "tag", "--list", "v*", "--sort=-v:refname")
	f.script.StubOK("def456\n", "git", "rev-list", "-n", "1", "v1.0.1")
	f.script.StubFail(128, "fatal: path 'dist/index.html' does not exist in 'def456'",
		"git", "cat-file", "-e", "def456:dist/index.html")
	f.script.StubOK("", "git", "checkout", "--detach", "def456")
	f.script.StubOK("", "npm", "ci")
	f.script.StubOK("", "npm", "run", "build")
	f.script.StubOK("", "npm", "run", "build:ui")
	f.script.StubOK("", "npm", "run", "doctor")
	f.script.StubOK("def456\n", "git", "rev-parse", "HEAD") // post-checkout HEAD

	return f
}

func (f *fixture) request() Request {
	return Request{
		WorkDir: f.workdir,
		Timeout: time.Minute,
		Channel: "stable",
		Runner:  f.script,
		BuildSteps: []build.Step{
			{Name: "install", Args: []string{"npm", "ci"}},
			{Name: "build", Args: []string{"npm", "run", "build"}},
			{Name: "ui-build", Args: []string{"npm", "run", "build:ui"}},
		},
		HealthStep: build.Step{Name: "health-check", Args: []string{"npm", "run", "doctor"}},
	}
}

func (f *fixture) run(t *testing.T) Result {
	t.Helper()
	orch, err := New(f.request())
	require.NoError(t, err)
	return orch.Run(context.Background())
}

func TestUpdateSucceedsWithUntrackedAsset(t *testing.T) {
	f := newFixture(t)
	result := f.run(t)

	want := Result{
		Status:     StatusOK,
		From:       "abc123",
		To:         "def456",
		Message:    "updated to v1.0.1",
		RollbackOK: true,
	}
	if diff := cmp.Diff(want, result, cmpopts.IgnoreFields(Result{}, "Message")); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, result.Message, "v1.0.1")

	// The asset directory is absent from the target commit, so no
	// source-control command may target it.
	assert.False(t, f.script.CalledMatching("checkout", "dist"))
}

func TestAlreadyAtTargetIsNoOp(t *testing.T) {
	f := newFixture(t)
	// The resolved tag points at the commit the repository is already on.
	f.script.RestubOK("abc123\n", "git", "rev-list", "-n", "1", "v1.0.1")

	result := f.run(t)

	want := Result{
		Status:     StatusNoOp,
		From:       "abc123",
		To:         "abc123",
		Message:    "already at v1.0.1",
		RollbackOK: true,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	// No mutating command may run for a no-op.
	assert.False(t, f.script.CalledMatching("checkout"))
	assert.Equal(t, 0, f.script.CallCount("npm", "ci"))
	assert.Equal(t, 0, f.script.CallCount("npm", "run", "build"))
}

func TestBuildFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.script.RestubFail(2, "npm ERR! build failed", "npm", "run", "build")
	f.script.StubOK("", "git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	require.NotNil(t, result.Failure)
	assert.Equal(t, errs.Build, result.Failure.Kind)
	assert.Equal(t, "npm ERR! build failed", result.Failure.Stderr)
	assert.True(t, result.RollbackOK)
	assert.Nil(t, result.RollbackFailure)
	assert.Equal(t, "abc123", result.From)

	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "--detach", "abc123"),
		"rollback must restore the originating commit")
	assert.Equal(t, 0, f.script.CallCount("npm", "run", "build:ui"),
		"pipeline aborts at the failing step")
}

func TestHealthCheckFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.script.RestubFail(1, "missing runtime config", "npm", "run", "doctor")
	f.script.StubOK("", "git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.HealthCheck, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "--detach", "abc123"))
}

func TestRollbackFailureIsReportedDistinctly(t *testing.T) {
	f := newFixture(t)
	f.script.RestubFail(2, "npm ERR! build failed", "npm", "run", "build")
	f.script.StubFail(1, "error: your local changes would be overwritten",
		"git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.Build, result.Failure.Kind, "original failure kind is preserved")
	assert.False(t, result.RollbackOK)
	require.NotNil(t, result.RollbackFailure)
	assert.Equal(t, errs.RollbackFailed, result.RollbackFailure.Kind)
	assert.Contains(t, result.String(), "manual intervention")
}

func TestCheckoutFailureNeedsNoRollback(t *testing.T) {
	f := newFixture(t)
	f.script.RestubFail(1, "error: pathspec 'def456' did not match",
		"git", "checkout", "--detach", "def456")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.Checkout, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	// HEAD never moved, so no checkout of the originating commit happens.
	assert.Equal(t, 0, f.script.CallCount("git", "checkout", "--detach", "abc123"))
}

func TestDirtyWorkingTreeFailsPreflight(t *testing.T) {
	f := newFixture(t)
	f.script.Restub(run.Outcome{Stdout: " M internal/server.go\n"},
		"git", "status", "--porcelain", "--", ".", ":(exclude)dist", ":(exclude).openclaw-update.lock")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.RepositoryState, result.Failure.Kind)
	assert.Equal(t, 0, f.script.CallCount("git", "checkout", "--detach", "def456"),
		"no mutation after a preflight failure")
}

func TestExhaustedBudgetStopsBeforeCheckout(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Timeout = time.Nanosecond

	orch, err := New(req)
	require.NoError(t, err)
	result := orch.Run(context.Background())

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.Timeout, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	assert.Equal(t, 0, f.script.CallCount("git", "checkout", "--detach", "def456"))
}

func TestTimedOutBuildRollsBack(t *testing.T) {
	f := newFixture(t)
	f.script.Restub(run.Outcome{ExitCode: -1, Stderr: "timed out", TimedOut: true},
		"npm", "run", "build")
	f.script.StubOK("", "git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.Timeout, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "--detach", "abc123"))
}

func TestVerifyMismatchRollsBack(t *testing.T) {
	// A fresh script where HEAD answers abc123 before the checkout and a
	// commit that is not the target afterwards.
	f := &fixture{script: run.NewScript(), workdir: t.TempDir()}
	f.script.StubOK(f.workdir+"\n", "git", "rev-parse", "--show-toplevel")
	f.script.StubOK("abc123\n", "git", "rev-parse", "HEAD")
	f.script.StubOK("wrong999\n", "git", "rev-parse", "HEAD")
	f.script.StubOK("", "git", "status", "--porcelain", "--", ".", ":(exclude)dist", ":(exclude).openclaw-update.lock")
	f.script.StubOK("", "git", "fetch", "--all", "--tags", "--prune")
	f.script.StubOK("v1.0.1\n", "git", "tag", "--list", "v*", "--sort=-v:refname")
	f.script.StubOK("def456\n", "git", "rev-list", "-n", "1", "v1.0.1")
	f.script.StubFail(128, "not there", "git", "cat-file", "-e", "def456:dist/index.html")
	f.script.StubOK("", "git", "checkout", "--detach", "def456")
	f.script.StubOK("", "npm", "ci")
	f.script.StubOK("", "npm", "run", "build")
	f.script.StubOK("", "npm", "run", "build:ui")
	f.script.StubOK("", "npm", "run", "doctor")
	f.script.StubOK("", "git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.RepositoryState, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "--detach", "abc123"))
}

func TestConcurrentUpdateRejected(t *testing.T) {
	f := newFixture(t)

	held, err := lockfile.Acquire(f.workdir)
	require.NoError(t, err)
	defer held.Release()

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.UpdateInProgress, result.Failure.Kind)
	// Only the root resolution runs before the lock is taken.
	calls := f.script.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"git", "rev-parse", "--show-toplevel"}, calls[0].Args)
}

func TestPlanRejectedWhileUpdateHoldsLock(t *testing.T) {
	f := newFixture(t)

	held, err := lockfile.Acquire(f.workdir)
	require.NoError(t, err)
	defer held.Release()

	orch, err := New(f.request())
	require.NoError(t, err)

	_, err = orch.Plan(context.Background())
	assert.True(t, errs.IsKind(err, errs.UpdateInProgress))
	assert.Equal(t, 0, f.script.CallCount("git", "fetch", "--all", "--tags", "--prune"),
		"no fetch may interleave with a running update")
}

func TestSubdirectoryWorkDirChecksWholeTree(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "packages", "api")
	require.NoError(t, os.MkdirAll(sub, 0755))

	// A file dirty at the repository root must fail preflight even though
	// the update was triggered from a subdirectory.
	script := run.NewScript()
	script.StubOK(root+"\n", "git", "rev-parse", "--show-toplevel")
	script.StubOK("abc123\n", "git", "rev-parse", "HEAD")
	script.StubOK(" M gateway.txt\n",
		"git", "status", "--porcelain", "--", ".", ":(exclude)dist", ":(exclude).openclaw-update.lock")

	orch, err := New(Request{WorkDir: sub, Timeout: time.Minute, Runner: script})
	require.NoError(t, err)
	result := orch.Run(context.Background())

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.RepositoryState, result.Failure.Kind)

	calls := script.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, sub, calls[0].Dir, "root resolution starts from the invocation directory")
	for _, c := range calls[1:] {
		assert.Equal(t, root, c.Dir, "repository commands run from the resolved root")
	}
}

func TestIdempotentSecondRunIsNoOp(t *testing.T) {
	f := newFixture(t)
	// After the update, HEAD and the tag both answer def456 (the last
	// scripted responses stick), so the second run resolves to a no-op.
	f.script.StubOK("def456\n", "git", "rev-list", "-n", "1", "v1.0.1")

	first := f.run(t)
	require.Equal(t, StatusOK, first.Status)

	second := f.run(t)
	assert.Equal(t, StatusNoOp, second.Status)
	assert.Equal(t, "def456", second.From)
	assert.Equal(t, "def456", second.To)
	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "--detach", "def456"),
		"no second checkout for a no-op")
}

func TestNoTagsIsVersionResolutionError(t *testing.T) {
	f := newFixture(t)
	f.script.RestubOK("", "git", "tag", "--list", "v*", "--sort=-v:refname")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.VersionResolution, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
}

func TestSoleUnmatchedTagAtCurrentCommitIsNoOp(t *testing.T) {
	f := newFixture(t)
	// The only tag is a prerelease the stable channel rejects, but the
	// repository already sits on its commit: downgrade to no-op.
	f.script.RestubOK("v1.0.1-rc.1\n", "git", "tag", "--list", "v*", "--sort=-v:refname")
	f.script.StubOK("abc123\n", "git", "rev-list", "-n", "1", "v1.0.1-rc.1")

	result := f.run(t)

	assert.Equal(t, StatusNoOp, result.Status)
	assert.Equal(t, "abc123", result.From)
	assert.Equal(t, 0, f.script.CallCount("git", "checkout", "--detach", "def456"))
}

func TestTrackedAssetIsRestored(t *testing.T) {
	f := newFixture(t)
	f.script.RestubOK("", "git", "cat-file", "-e", "def456:dist/index.html")
	f.script.StubOK("", "git", "checkout", "def456", "--", "dist")

	result := f.run(t)

	require.Equal(t, StatusOK, result.Status)
	assert.Equal(t, 1, f.script.CallCount("git", "checkout", "def456", "--", "dist"))
}

func TestAssetRestoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.script.RestubOK("", "git", "cat-file", "-e", "def456:dist/index.html")
	f.script.StubFail(1, "error: unable to restore", "git", "checkout", "def456", "--", "dist")
	f.script.StubOK("", "git", "checkout", "--detach", "abc123")

	result := f.run(t)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, errs.AssetRestore, result.Failure.Kind)
	assert.True(t, result.RollbackOK)
	assert.Equal(t, 0, f.script.CallCount("npm", "ci"), "build never starts")
}

func TestPlanDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	orch, err := New(f.request())
	require.NoError(t, err)

	plan, err := orch.Plan(context.Background())
	require.NoError(t, err)

	want := Plan{
		From:         "abc123",
		TargetTag:    "v1.0.1",
		TargetCommit: "def456",
		AssetTracked: false,
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, f.script.CallCount("git", "checkout", "--detach", "def456"))
	assert.Equal(t, 0, f.script.CallCount("npm", "ci"))
}

func TestNewRejectsInvalidRequest(t *testing.T) {
	_, err := New(Request{})
	assert.Error(t, err)

	_, err = New(Request{WorkDir: "/repo"})
	assert.Error(t, err)
}
