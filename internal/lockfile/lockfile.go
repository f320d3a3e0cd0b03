// Package lockfile serializes update attempts against a working directory.
//
// The lock is a file lock so the exclusion holds across processes, not just
// goroutines: a scheduled update and a manually triggered one must never
// interleave their git mutations.
package lockfile

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/patrick-slimelab/openclaw/internal/errs"
)

// LockFileName is the lock file created inside the working directory.
const LockFileName = ".openclaw-update.lock"

// Lock is a held working-directory lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the update lock for workdir without blocking. A held lock
// yields an update-in-progress error so a second trigger fails fast.
func Acquire(workdir string) (*Lock, error) {
	const op = "lockfile.Acquire"
	fl := flock.New(filepath.Join(workdir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errs.Ef(errs.RepositoryState, op, "failed to take update lock: %v", err)
	}
	if !ok {
		return nil, errs.Ef(errs.UpdateInProgress, op, "another update is already running in %s", workdir)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call on every exit path.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
