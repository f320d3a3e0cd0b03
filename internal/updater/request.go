package updater

import (
	"errors"
	"time"

	"github.com/patrick-slimelab/openclaw/internal/build"
	"github.com/patrick-slimelab/openclaw/internal/logging"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// Defaults applied by New when a Request field is zero.
const (
	DefaultTimeout    = 10 * time.Minute
	DefaultTagPattern = "v*"
	DefaultAssetDir   = "dist"
	DefaultAssetEntry = "index.html"
)

// Request describes one update attempt. It is immutable for the lifetime of
// the attempt.
type Request struct {
	// WorkDir is a directory inside the gateway's git checkout.
	WorkDir string
	// Timeout is the overall budget for the whole attempt. Every external
	// command runs within whatever remains of it.
	Timeout time.Duration
	// Channel is the release channel, e.g. "stable" or "beta".
	Channel string
	// Runner executes every external command for this attempt.
	Runner run.Runner

	// TagPattern is the glob passed to the tag listing.
	TagPattern string
	// AssetDir is the protected build-artifact directory, relative to the
	// repository root. It is excluded from cleanliness checks and only
	// restored from commits that actually contain it.
	AssetDir string
	// AssetEntry is the file inside AssetDir probed to decide whether the
	// directory is tracked at the target commit.
	AssetEntry string

	// BuildSteps run in order after checkout: dependency install, primary
	// build, UI build.
	BuildSteps []build.Step
	// HealthStep is the post-build diagnostic command.
	HealthStep build.Step

	Logger logging.Logger
}

func (r *Request) validate() error {
	if r.WorkDir == "" {
		return errors.New("updater: working directory is required")
	}
	if r.Runner == nil {
		return errors.New("updater: command runner is required")
	}
	return nil
}

func (r *Request) applyDefaults() {
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Channel == "" {
		r.Channel = "stable"
	}
	if r.TagPattern == "" {
		r.TagPattern = DefaultTagPattern
	}
	if r.AssetDir == "" {
		r.AssetDir = DefaultAssetDir
	}
	if r.AssetEntry == "" {
		r.AssetEntry = DefaultAssetEntry
	}
	if r.Logger == nil {
		r.Logger = logging.Nop()
	}
}
