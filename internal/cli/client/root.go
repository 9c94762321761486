package client

import (
	"github.com/cloo-solutions/ragdesk/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the ragdesk command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragdesk",
		Short: "ragdesk CLI - ask questions about your documents",
		Long: `ragdesk uploads documents to a ragdesk server and answers questions from them.

Environment variables:
  RAGDESK_TOKEN     Access token (or run 'ragdesk login')
  RAGDESK_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("token", "", "Access token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(LoginCmd())
	rootCmd.AddCommand(LogoutCmd())
	rootCmd.AddCommand(WhoamiCmd())
	rootCmd.AddCommand(DocsCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(SettingsCmd())

	return rootCmd
}
