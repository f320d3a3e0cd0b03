package updater

import (
	"fmt"

	"github.com/patrick-slimelab/openclaw/internal/errs"
)

// Status is the terminal outcome of an update attempt.
type Status string

const (
	// StatusOK means the repository transitioned to the target version.
	StatusOK Status = "ok"
	// StatusNoOp means the repository was already at the resolved target.
	StatusNoOp Status = "no-op"
	// StatusError means the attempt failed; RollbackOK tells whether the
	// working tree was restored.
	StatusError Status = "error"
)

// Failure is the classified cause of a failed attempt.
type Failure struct {
	Kind    errs.Kind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
	Stderr  string    `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// Result is the single terminal result of one update attempt.
type Result struct {
	Status Status `json:"status" yaml:"status"`
	// From is the commit the repository was at before any mutation.
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	// To is the commit the repository ended at, when known.
	To      string `json:"to,omitempty" yaml:"to,omitempty"`
	Message string `json:"message" yaml:"message"`

	// Failure classifies the error when Status is "error".
	Failure *Failure `json:"failure,omitempty" yaml:"failure,omitempty"`
	// RollbackFailure is set only when the rollback itself failed; the
	// working tree is then in an indeterminate state requiring manual
	// intervention.
	RollbackFailure *Failure `json:"rollback_failure,omitempty" yaml:"rollback_failure,omitempty"`
	// RollbackOK is false only when an update failed and the working tree
	// could not be restored to From.
	RollbackOK bool `json:"rollback_ok" yaml:"rollback_ok"`
}

// Plan is the resolved update decision, produced before any mutation.
type Plan struct {
	From         string `json:"from" yaml:"from"`
	TargetTag    string `json:"target_tag" yaml:"target_tag"`
	TargetCommit string `json:"target_commit" yaml:"target_commit"`
	AssetTracked bool   `json:"asset_tracked" yaml:"asset_tracked"`
	UpToDate     bool   `json:"up_to_date" yaml:"up_to_date"`
}

func (p Plan) String() string {
	if p.UpToDate {
		return fmt.Sprintf("up to date: %s at %s", p.TargetTag, shortCommit(p.From))
	}
	return fmt.Sprintf("update available: %s (%s -> %s)", p.TargetTag, shortCommit(p.From), shortCommit(p.TargetCommit))
}

func (r Result) String() string {
	switch r.Status {
	case StatusNoOp:
		return fmt.Sprintf("already up to date at %s", shortCommit(r.From))
	case StatusOK:
		return fmt.Sprintf("updated %s -> %s (%s)", shortCommit(r.From), shortCommit(r.To), r.Message)
	default:
		msg := fmt.Sprintf("update failed (%s): %s", r.Failure.Kind, r.Message)
		if r.RollbackFailure != nil {
			msg += fmt.Sprintf("\nROLLBACK FAILED: %s\nthe working tree may be inconsistent and requires manual intervention", r.RollbackFailure.Message)
		}
		return msg
	}
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	if c == "" {
		return "(unknown)"
	}
	return c
}
