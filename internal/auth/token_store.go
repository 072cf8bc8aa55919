package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgoauth "github.com/alishah730/auth-pkce/pkg/oauth"
)

// TokenFileName is the token record file inside the state directory.
const TokenFileName = "token.json"

// TokenRecord is the persisted form of an OAuth token set.
// It is created or overwritten on successful code exchange or refresh and
// deleted wholesale on logout.
type TokenRecord struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// RefreshToken is the OAuth refresh token (if the provider issued one).
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// ExpiresAt is the absolute expiry timestamp. Zero means the token
	// does not expire.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`
}

// ExpiredAt reports whether the record is expired at the given instant.
// The comparison is strict: a token whose expiry equals now counts as
// expired. A zero ExpiresAt never expires.
func (r *TokenRecord) ExpiredAt(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}

// Expired reports whether the record is expired right now.
func (r *TokenRecord) Expired() bool {
	return r.ExpiredAt(time.Now())
}

// BearerToken returns the access token formatted as an Authorization
// header value.
func (r *TokenRecord) BearerToken() string {
	return "Bearer " + r.AccessToken
}

// NewTokenRecord builds a record from a token endpoint response.
func NewTokenRecord(token *pkgoauth.Token) *TokenRecord {
	return &TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      token.IDToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		ExpiresAt:    token.ExpiresAt,
		CreatedAt:    time.Now(),
	}
}

// TokenStore persists the token record in the state directory.
//
// SECURITY: This store handles sensitive OAuth credentials. The state
// directory is created with 0700 and the token file is written with 0600
// via an atomic temp-file-and-rename. Token values are never logged.
type TokenStore struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger
}

// NewTokenStore creates a token store rooted at dir.
// When dir is empty the default state directory under the user's home is used.
func NewTokenStore(dir string, logger *slog.Logger) (*TokenStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".config/auth-pkce")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenStore{dir: dir, logger: logger}, nil
}

// Path returns the full path of the token file.
func (s *TokenStore) Path() string {
	return filepath.Join(s.dir, TokenFileName)
}

// Save persists the token record with owner-only permissions.
func (s *TokenStore) Save(record *TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := s.Path() + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token record: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace token record: %w", err)
	}

	s.logger.Debug("Token record stored",
		"expires_at", record.ExpiresAt,
		"has_refresh_token", record.RefreshToken != "",
	)
	return nil
}

// Load reads the persisted token record.
// Returns (nil, nil) when no record exists; loading is idempotent.
func (s *TokenStore) Load() (*TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token record: %w", err)
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse token record: %w", err)
	}

	return &record, nil
}

// Clear deletes the token record.
// Clearing an absent record is not an error.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}

	s.logger.Debug("Token record deleted")
	return nil
}
