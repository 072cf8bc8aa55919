package cmd

import (
	"github.com/spf13/cobra"

	"github.com/alishah730/auth-pkce/internal/config"
)

// Configure-specific flags
var (
	configureBaseURL      string
	configureClientID     string
	configureRedirectURI  string
	configureScope        string
	configureAuthEndpoint string
	configureTokenURL     string
	configureUserinfoURL  string
	configureLogoutURL    string
)

// configureCmd represents the configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the OAuth provider",
	Long: `Configure the OAuth provider this installation authenticates against.

The base URL and client ID are required. The OAuth endpoints are normally
resolved automatically from the provider's discovery document at login
time; pass them explicitly only for providers without discovery support.

Examples:
  auth-pkce configure --base-url https://idp.example.com --client-id my-cli
  auth-pkce configure --base-url https://idp.example.com --client-id my-cli \
      --scope "openid profile" --redirect-uri http://localhost:8765/callback`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&configureBaseURL, "base-url", "", "Provider base URL (required)")
	configureCmd.Flags().StringVar(&configureClientID, "client-id", "", "OAuth client ID (required)")
	configureCmd.Flags().StringVar(&configureRedirectURI, "redirect-uri", "", "Loopback redirect URI (default "+config.DefaultRedirectURI+")")
	configureCmd.Flags().StringVar(&configureScope, "scope", "", `Requested scopes (default "`+config.DefaultScope+`")`)
	configureCmd.Flags().StringVar(&configureAuthEndpoint, "authorization-endpoint", "", "Authorization endpoint (skips discovery)")
	configureCmd.Flags().StringVar(&configureTokenURL, "token-endpoint", "", "Token endpoint (skips discovery)")
	configureCmd.Flags().StringVar(&configureUserinfoURL, "userinfo-endpoint", "", "Userinfo endpoint")
	configureCmd.Flags().StringVar(&configureLogoutURL, "end-session-endpoint", "", "End-session/revocation endpoint")

	_ = configureCmd.MarkFlagRequired("base-url")
	_ = configureCmd.MarkFlagRequired("client-id")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	cfg := &config.ProviderConfig{
		BaseURL:               configureBaseURL,
		ClientID:              configureClientID,
		RedirectURI:           configureRedirectURI,
		Scope:                 configureScope,
		AuthorizationEndpoint: configureAuthEndpoint,
		TokenEndpoint:         configureTokenURL,
		UserinfoEndpoint:      configureUserinfoURL,
		EndSessionEndpoint:    configureLogoutURL,
	}

	if err := session.Configure(cfg); err != nil {
		return err
	}

	cliPrint("Configuration saved for %s\n", cfg.BaseURL)
	cliPrintln("\nTo authenticate, run:")
	cliPrintln("  auth-pkce login")
	return nil
}
