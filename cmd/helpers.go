package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/alishah730/auth-pkce/internal/auth"
	"github.com/alishah730/auth-pkce/internal/config"
	pkgoauth "github.com/alishah730/auth-pkce/pkg/oauth"
)

// cliPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func cliPrint(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

// cliPrintln prints a line only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func cliPrintln(a ...interface{}) {
	if !quiet {
		fmt.Println(a...)
	}
}

// newLogger creates the slog logger used by a command invocation, honoring
// the --log-level flag. Logs go to stderr so command output stays pipeable.
func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newSession wires up a Session from the global flags.
func newSession(opts ...auth.SessionOption) (*auth.Session, error) {
	logger := newLogger()

	configMgr, err := config.NewManager(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	store, err := auth.NewTokenStore(stateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	userAgent := pkgoauth.DefaultUserAgent
	if v := rootCmd.Version; v != "" {
		userAgent += "/" + v
	}
	client := pkgoauth.NewClient(
		pkgoauth.WithLogger(logger),
		pkgoauth.WithUserAgent(userAgent),
	)

	base := []auth.SessionOption{
		auth.WithSessionLogger(logger),
		auth.WithSessionOutput(os.Stderr),
	}

	return auth.NewSession(configMgr, store, client, append(base, opts...)...), nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	expiredAgo := -remaining
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(expiredAgo))
}
