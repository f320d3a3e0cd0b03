// Package cmd wires the openclaw CLI.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patrick-slimelab/openclaw/internal/output"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	workDir      string
	verbose      bool
	quiet        bool
)

func Execute(version, commit, date string) error {
	rootCmd := &cobra.Command{
		Use:   "openclaw",
		Short: "Gateway deployment management",
		Long: `openclaw manages a locally deployed, git-tracked gateway installation.

Upgrade the deployment to a released version with openclaw update; inspect the
checkout with openclaw status; see what an update would do with openclaw check.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to openclaw.toml")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "Gateway working directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}
