package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"github.com/alishah730/auth-pkce/internal/auth"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "auth-pkce" {
		t.Errorf("Expected Use to be 'auth-pkce', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	// Same version template as in Execute()
	testCmd.SetVersionTemplate(`{{printf "auth-pkce version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "auth-pkce version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestSubcommands(t *testing.T) {
	commands := rootCmd.Commands()

	expectedCommands := []string{
		"configure", "login", "logout", "status", "whoami",
		"refresh", "token", "version", "self-update",
	}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %q to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration error", &auth.ConfigurationError{Reason: "not configured"}, ExitCodeAuthRequired},
		{"token error", &auth.TokenError{Reason: "not authenticated"}, ExitCodeAuthRequired},
		{"expired token error", &auth.TokenError{Reason: "expired", Expired: true}, ExitCodeAuthRequired},
		{"authentication error", &auth.AuthenticationError{Reason: "denied"}, ExitCodeAuthFailed},
		{"wrapped authentication error", fmt.Errorf("login: %w", &auth.AuthenticationError{Reason: "denied"}), ExitCodeAuthFailed},
		{"generic error", errors.New("something failed"), ExitCodeError},
		{"validation error", &auth.ValidationError{Field: "baseUrl", Reason: "bad"}, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
