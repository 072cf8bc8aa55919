package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current authenticated identity",
	Long: `Show the identity behind the stored access token.

This command queries the provider's userinfo endpoint. When the
provider exposes none, identity claims are read from the stored ID
token instead.

Examples:
  auth-pkce whoami`,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	info, err := session.Whoami(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case info.Email != "":
		fmt.Printf("Identity:  %s\n", info.Email)
	case info.PreferredUsername != "":
		fmt.Printf("Identity:  %s\n", info.PreferredUsername)
	case info.Subject != "":
		fmt.Printf("Identity:  %s\n", info.Subject)
	}
	if info.Name != "" {
		fmt.Printf("Name:      %s\n", info.Name)
	}
	if info.Subject != "" {
		fmt.Printf("Subject:   %s\n", info.Subject)
	}

	return nil
}
