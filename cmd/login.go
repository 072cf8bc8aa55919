package cmd

import (
	"errors"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/alishah730/auth-pkce/internal/auth"
)

// Login-specific flags
var (
	loginNoBrowser bool
	loginTimeout   time.Duration
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the configured provider",
	Long: `Authenticate with the configured OAuth provider.

This command runs the Authorization Code Grant with PKCE: it opens the
provider's login page in your browser, receives the callback on a local
loopback listener, exchanges the authorization code for tokens, and
stores them for later use.

Examples:
  auth-pkce login                # Open the browser automatically
  auth-pkce login --no-browser   # Print the URL instead of opening a browser
  auth-pkce login --timeout 2m   # Abort if no callback arrives in 2 minutes`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", auth.AuthorizeTimeout, "How long to wait for the browser callback")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := []auth.SessionOption{
		auth.WithSessionAuthorizeTimeout(loginTimeout),
	}
	if loginNoBrowser {
		opts = append(opts, auth.WithSessionBrowserOpener(func(string) error {
			return errors.New("browser disabled by --no-browser")
		}))
	}

	session, err := newSession(opts...)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if !quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Waiting for browser authentication..."
		s.Start()
		defer s.Stop()
	}

	record, err := session.Login(ctx)
	if err != nil {
		if s != nil {
			s.FinalMSG = text.FgRed.Sprint("Authentication failed") + "\n"
		}
		return err
	}

	if s != nil {
		s.Stop()
	}

	cliPrintln(text.FgGreen.Sprint("Authentication successful"))
	if !record.ExpiresAt.IsZero() {
		cliPrint("Token expires %s\n", formatExpiryWithDirection(record.ExpiresAt))
	}
	if record.RefreshToken == "" {
		cliPrintln()
		cliPrintln("Note: the provider issued no refresh token; you will need to")
		cliPrintln("log in again when the access token expires.")
	}
	return nil
}
