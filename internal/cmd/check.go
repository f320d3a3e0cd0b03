package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patrick-slimelab/openclaw/internal/updater"
)

var checkChannel string

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show what an update would do without changing anything",
		Long: `Check fetches release tags and resolves the target version for the channel,
then reports whether the deployment is up to date. The working tree is not
modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd)
		},
	}

	cmd.Flags().StringVar(&checkChannel, "channel", "", "Release channel (overrides config)")

	return cmd
}

func runCheck(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg, checkChannel)
	if err != nil {
		return err
	}
	orch, err := updater.New(req)
	if err != nil {
		return err
	}

	plan, err := orch.Plan(cmd.Context())
	if err != nil {
		return err
	}

	writer, err := newWriter()
	if err != nil {
		return err
	}
	return writer.Render(plan)
}
