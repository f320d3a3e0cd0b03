package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patrick-slimelab/openclaw/internal/updater"
)

var (
	updateChannel string
	updateTimeout string
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the gateway deployment to the latest release",
		Long: `Update fetches release tags, checks out the latest version for the channel,
rebuilds the gateway, and verifies the result.

The working tree must be clean apart from the protected asset directory. Any
failure after the checkout rolls the deployment back to its original commit.

Examples:
  openclaw update                    # follow the configured channel
  openclaw update --channel beta     # follow the beta channel
  openclaw update --timeout 30m      # allow a longer build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd)
		},
	}

	cmd.Flags().StringVar(&updateChannel, "channel", "", "Release channel (overrides config)")
	cmd.Flags().StringVar(&updateTimeout, "timeout", "", "Overall time budget, e.g. 15m (overrides config)")

	return cmd
}

func runUpdate(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if updateTimeout != "" {
		cfg.Gateway.Timeout = updateTimeout
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	req, err := buildRequest(cfg, updateChannel)
	if err != nil {
		return err
	}
	orch, err := updater.New(req)
	if err != nil {
		return err
	}

	result := orch.Run(cmd.Context())

	writer, err := newWriter()
	if err != nil {
		return err
	}
	if err := writer.Render(result); err != nil {
		return err
	}

	if result.Status == updater.StatusError {
		return fmt.Errorf("update failed (%s)", result.Failure.Kind)
	}
	return nil
}
