package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/alishah730/auth-pkce/internal/auth"
	"github.com/alishah730/auth-pkce/internal/config"
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can branch on the failure class.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags shared by all commands.
var (
	stateDir string
	quiet    bool
	logLevel string
)

// rootCmd represents the base command for the auth-pkce application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "auth-pkce",
	Short: "Authenticate CLI tools against an OAuth 2.0 provider with PKCE",
	Long: `auth-pkce obtains and manages OAuth 2.0 tokens for command-line use.

It runs the Authorization Code Grant with PKCE against a configured
provider: it opens your browser for the provider's login page, receives
the callback on a local loopback listener, and stores the resulting
tokens with owner-only file permissions.

Typical usage:
  auth-pkce configure --base-url https://idp.example.com --client-id my-cli
  auth-pkce login
  auth-pkce token --bearer`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles
// subcommands and flags. This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "auth-pkce version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var configErr *auth.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeAuthRequired
	}

	var tokenErr *auth.TokenError
	if errors.As(err, &tokenErr) {
		return ExitCodeAuthRequired
	}

	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "config-dir", "", "State directory (default $HOME/"+config.DefaultStateDir+")")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
