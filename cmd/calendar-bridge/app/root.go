// Package app provides the calendar-bridge command-line entry point.
package app

import (
	"github.com/spf13/cobra"

	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "calendar-bridge",
	DisableAutoGenTag: true,
	Short:             "Calendar Bridge lets an MCP client call Google Calendar on a user's behalf",
	Long: `Calendar Bridge is an OAuth/OIDC bridge service: it fronts Google Calendar's
API for MCP clients, holding each user's Google refresh token so the client
never sees a password, and optionally fronts its own downstream OAuth 2.1
Authorization Server for clients that can't do a direct OAuth dance with Google.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the calendar-bridge CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(serveCmd)
	rootCmd.SilenceUsage = true
	return rootCmd
}
