package cmd

import (
	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored authentication tokens",
	Long: `Clear the stored OAuth tokens.

This command attempts to revoke the tokens with the provider (best
effort) and deletes the local token record. The local deletion always
happens, even when the provider is unreachable.

Examples:
  auth-pkce logout`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	if err := session.Logout(cmd.Context()); err != nil {
		return err
	}

	cliPrintln("Logged out.")
	return nil
}
