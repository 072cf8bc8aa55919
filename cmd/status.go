package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/alishah730/auth-pkce/internal/auth"
)

// Status-specific flags
var (
	statusNoRefresh bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the current authentication status.

This command displays whether a provider is configured, whether you are
authenticated, and when the token expires. An expired token is refreshed
transparently when a refresh token is available.

Examples:
  auth-pkce status                 # Show status, refreshing if needed
  auth-pkce status --no-refresh    # Report the stored state as-is`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusNoRefresh, "no-refresh", false, "Do not refresh an expired token during the check")
}

func runStatus(cmd *cobra.Command, args []string) error {
	session, err := newSession(auth.WithAutoRefresh(!statusNoRefresh))
	if err != nil {
		return err
	}

	status, err := session.Status(cmd.Context())
	if err != nil {
		return err
	}

	if !status.Configured {
		fmt.Printf("Configured:    %s\n", text.FgYellow.Sprint("no"))
		cliPrintln("\nTo configure, run:")
		cliPrintln("  auth-pkce configure --base-url <provider-url> --client-id <client-id>")
		return nil
	}

	fmt.Printf("Configured:    yes\n")
	fmt.Printf("Provider:      %s\n", status.Config.BaseURL)
	fmt.Printf("Client ID:     %s\n", status.Config.ClientID)

	switch {
	case status.Authenticated:
		fmt.Printf("Status:        %s\n", text.FgGreen.Sprint("Authenticated"))
		if status.Refreshed {
			cliPrintln("               (token was refreshed during this check)")
		}
		if status.Record != nil && !status.Record.ExpiresAt.IsZero() {
			fmt.Printf("Expires:       %s\n", formatExpiryWithDirection(status.Record.ExpiresAt))
		}
	case status.Expired:
		fmt.Printf("Status:        %s\n", text.FgYellow.Sprint("Token expired"))
		if status.Record != nil {
			fmt.Printf("Expired:       %s\n", formatExpiryWithDirection(status.Record.ExpiresAt))
		}
		cliPrintln("\nTo authenticate again, run:")
		cliPrintln("  auth-pkce login")
	default:
		fmt.Printf("Status:        %s\n", text.FgRed.Sprint("Not authenticated"))
		cliPrintln("\nTo authenticate, run:")
		cliPrintln("  auth-pkce login")
	}

	return nil
}
