// Package commands implements the ChatClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatclaw",
		Short: "ChatClaw - confirmation-gated chat assistant for Telegram",
		Long: `ChatClaw is a Telegram assistant that answers questions with an
optional, user-confirmed web search step folded into each answer.

Examples:
  chatclaw serve
  chatclaw serve --config ./config.yaml
  chatclaw setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
