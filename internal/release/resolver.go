// Package release resolves the target release tag for an update channel.
package release

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/patrick-slimelab/openclaw/internal/errs"
)

// ChannelStable is the default release channel: final releases only.
const ChannelStable = "stable"

// Resolve picks the highest version among the tags admitted by the channel
// and returns it in its original tag spelling. Tags that do not parse as
// semantic versions are skipped. An empty candidate set is a
// version-resolution error; the caller decides whether "already at the only
// tag" downgrades it to a no-op.
func Resolve(tags []string, channel string) (string, error) {
	const op = "release.Resolve"
	candidates := filter(tags, channel)
	if len(candidates) == 0 {
		return "", errs.Ef(errs.VersionResolution, op, "no release tag matches channel %q", channel)
	}

	slices.SortFunc(candidates, func(a, b *semver.Version) int {
		return b.Compare(a) // descending
	})
	return candidates[0].Original(), nil
}

// filter parses tags and keeps those the channel admits. The stable channel
// admits only final releases; any other channel additionally admits
// prereleases whose first prerelease identifier equals the channel name, so
// "beta" sees v1.3.0-beta.2 as well as v1.2.0.
func filter(tags []string, channel string) []*semver.Version {
	if channel == "" {
		channel = ChannelStable
	}
	var out []*semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		pre := v.Prerelease()
		if pre == "" {
			out = append(out, v)
			continue
		}
		if channel == ChannelStable {
			continue
		}
		ident, _, _ := strings.Cut(pre, ".")
		if ident == channel {
			out = append(out, v)
		}
	}
	return out
}
