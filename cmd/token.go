package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Token-specific flags
var (
	tokenBearer bool
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the stored access token",
	Long: `Print the stored access token to stdout.

This is meant for scripting: the token is printed raw with no
decoration, and an expired token produces a non-zero exit code instead
of an implicit refresh. Run 'auth-pkce refresh' first if the token may
have expired.

Examples:
  auth-pkce token                              # Raw access token
  auth-pkce token --bearer                     # "Bearer <token>" form
  curl -H "Authorization: $(auth-pkce token --bearer)" https://api.example.com`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().BoolVar(&tokenBearer, "bearer", false, `Print as an Authorization header value ("Bearer <token>")`)
}

func runToken(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	var token string
	if tokenBearer {
		token, err = session.GetBearerToken()
	} else {
		token, err = session.GetAccessToken()
	}
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
