package cmd

import (
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a token refresh",
	Long: `Force a refresh of the stored access token.

This command exchanges the stored refresh token for a new access token,
which can be useful if you are experiencing authentication issues.

Examples:
  auth-pkce refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	cliPrintln("Refreshing token...")
	record, err := session.Refresh(cmd.Context())
	if err != nil {
		return err
	}

	cliPrintln(text.FgGreen.Sprint("Token refreshed successfully."))
	if !record.ExpiresAt.IsZero() {
		cliPrint("Token expires %s\n", formatExpiryWithDirection(record.ExpiresAt))
	}
	return nil
}
