package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patrick-slimelab/openclaw/internal/gitrepo"
	"github.com/patrick-slimelab/openclaw/internal/lockfile"
	"github.com/patrick-slimelab/openclaw/internal/run"
)

// statusReport is the repository state plus the release tags visible to the
// configured pattern.
type statusReport struct {
	gitrepo.State `yaml:",inline" json:",inline"`
	Tags          []string `json:"tags" yaml:"tags"`
}

func (s statusReport) String() string {
	if len(s.Tags) == 0 {
		return s.State.String() + "\nno release tags"
	}
	return fmt.Sprintf("%s\ntags: %s", s.State, strings.Join(s.Tags, ", "))
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the deployment's repository state",
		Long: `Status reports the repository root, current commit, whether the working tree
is clean, and the release tags matching the configured pattern. The protected
asset directory is ignored for cleanliness, the same way the updater ignores
it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			insp, _, err := gitrepo.NewInspector(run.NewExecRunner(), workDir).AtRoot(cmd.Context())
			if err != nil {
				return err
			}
			state, err := insp.Describe(cmd.Context(), cfg.Assets.Dir, lockfile.LockFileName)
			if err != nil {
				return err
			}
			tags, err := insp.ListTags(cmd.Context(), cfg.Gateway.TagPattern)
			if err != nil {
				return err
			}

			writer, err := newWriter()
			if err != nil {
				return err
			}
			return writer.Render(statusReport{State: state, Tags: tags})
		},
	}
}
