package auth

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	pkgoauth "github.com/alishah730/auth-pkce/pkg/oauth"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()

	store, err := NewTokenStore(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("NewTokenStore() error = %v", err)
	}
	return store
}

func TestTokenStoreRoundtrip(t *testing.T) {
	store := newTestStore(t)

	record := &TokenRecord{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		IDToken:      "id-token",
		TokenType:    "Bearer",
		Scope:        "openid profile",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Save(record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil after Save()")
	}

	if loaded.AccessToken != record.AccessToken {
		t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, record.AccessToken)
	}
	if loaded.RefreshToken != record.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, record.RefreshToken)
	}
	if !loaded.ExpiresAt.Equal(record.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, record.ExpiresAt)
	}
}

func TestTokenStoreLoadAbsent(t *testing.T) {
	store := newTestStore(t)

	record, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for absent record", err)
	}
	if record != nil {
		t.Errorf("Load() = %+v, want nil for absent record", record)
	}
}

func TestTokenStoreClearIdempotent(t *testing.T) {
	store := newTestStore(t)

	// Clearing an absent record must not fail.
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() on absent record error = %v", err)
	}

	if err := store.Save(&TokenRecord{AccessToken: "tok", TokenType: "Bearer", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}

	record, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	if record != nil {
		t.Error("Load() after Clear() returned a record")
	}
}

func TestTokenStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permissions are not meaningful on windows")
	}

	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewTokenStore(dir, nil)
	if err != nil {
		t.Fatalf("NewTokenStore() error = %v", err)
	}

	if err := store.Save(&TokenRecord{AccessToken: "tok", TokenType: "Bearer", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat(dir) error = %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("state dir permissions = %o, want 0700", perm)
	}

	fileInfo, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Stat(token file) error = %v", err)
	}
	if perm := fileInfo.Mode().Perm(); perm != 0600 {
		t.Errorf("token file permissions = %o, want 0600", perm)
	}
}

func TestTokenStoreNoTempFileLeftovers(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := store.Save(&TokenRecord{AccessToken: "tok", TokenType: "Bearer", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestTokenRecordExpiredAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"future expiry", now.Add(time.Hour), false},
		{"past expiry", now.Add(-time.Hour), true},
		{"expiry equals now counts as expired", now, true},
		{"zero expiry never expires", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &TokenRecord{AccessToken: "tok", ExpiresAt: tt.expiresAt}
			if got := record.ExpiredAt(now); got != tt.want {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenRecordBearerToken(t *testing.T) {
	record := &TokenRecord{AccessToken: "abc123"}
	if got := record.BearerToken(); got != "Bearer abc123" {
		t.Errorf("BearerToken() = %q, want %q", got, "Bearer abc123")
	}
}

func TestNewTokenRecord(t *testing.T) {
	token := &pkgoauth.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		IDToken:      "id",
		TokenType:    "Bearer",
		Scope:        "openid",
		ExpiresIn:    3600,
	}
	token.SetExpiresAtFromExpiresIn()

	record := NewTokenRecord(token)
	if record.AccessToken != "access" {
		t.Errorf("AccessToken = %q", record.AccessToken)
	}
	if record.ExpiresAt.IsZero() {
		t.Error("ExpiresAt is zero, want derived from expires_in")
	}
	if record.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}
