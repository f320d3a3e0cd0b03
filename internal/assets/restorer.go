// Package assets handles the protected build-artifact directory during
// updates.
//
// The gateway's UI bundle may be committed in some releases and locally built
// in others. The restorer decides per target commit whether to restore the
// directory from source control or leave it for the build pipeline, and keeps
// a snapshot of the current contents so a rollback can put them back.
package assets

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	cp "github.com/otiai10/copy"

	"github.com/patrick-slimelab/openclaw/internal/errs"
	"github.com/patrick-slimelab/openclaw/internal/gitrepo"
)

// Restorer manages one protected asset directory relative to the repository
// root.
type Restorer struct {
	inspector *gitrepo.Inspector
	root      string // repository root, absolute
	dir       string // protected directory, relative to root
	entry     string // entry file inside dir used as the tracked-ness probe

	backupDir string // snapshot location, set once Restore has run
}

// NewRestorer creates a Restorer for the asset directory dir under the
// repository root. entry names the file inside dir whose presence at a commit
// decides whether the whole directory is restorable from that commit.
func NewRestorer(inspector *gitrepo.Inspector, root, dir, entry string) *Restorer {
	return &Restorer{inspector: inspector, root: root, dir: dir, entry: entry}
}

// Dir returns the protected directory relative to the repository root.
func (r *Restorer) Dir() string { return r.dir }

// TrackedAt reports whether the asset entry file exists in the given commit.
// A false answer means the directory was never committed there and the build
// pipeline must regenerate it; no source-control command may target the
// directory in that case.
func (r *Restorer) TrackedAt(ctx context.Context, commit string) (bool, error) {
	return r.inspector.IsTrackedAtCommit(ctx, commit, path.Join(r.dir, r.entry))
}

// Restore snapshots the current asset directory and then restores its
// contents from the given commit. Call only when TrackedAt reported true.
func (r *Restorer) Restore(ctx context.Context, commit string) error {
	if err := r.snapshot(); err != nil {
		return errs.Ef(errs.AssetRestore, "assets.Restore", "failed to snapshot %s before restore: %v", r.dir, err)
	}
	return r.inspector.RestorePath(ctx, commit, r.dir)
}

// snapshot copies the current asset directory to a temp location. A missing
// directory is fine: there is nothing to put back on rollback.
func (r *Restorer) snapshot() error {
	src := filepath.Join(r.root, filepath.FromSlash(r.dir))
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	tmp, err := os.MkdirTemp("", "openclaw-assets-")
	if err != nil {
		return err
	}
	if err := cp.Copy(src, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	r.backupDir = tmp
	return nil
}

// Rollback puts the snapshotted contents back, replacing whatever the
// aborted restore left behind. A no-op when Restore never ran or found no
// directory to snapshot.
func (r *Restorer) Rollback() error {
	if r.backupDir == "" {
		return nil
	}
	dst := filepath.Join(r.root, filepath.FromSlash(r.dir))
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear %s for rollback: %w", r.dir, err)
	}
	if err := cp.Copy(r.backupDir, dst); err != nil {
		return fmt.Errorf("failed to restore %s from snapshot: %w", r.dir, err)
	}
	return nil
}

// Discard removes the snapshot after a successful update.
func (r *Restorer) Discard() {
	if r.backupDir != "" {
		os.RemoveAll(r.backupDir)
		r.backupDir = ""
	}
}
