package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alishah730/auth-pkce/internal/config"
	pkgoauth "github.com/alishah730/auth-pkce/pkg/oauth"
)

// Session is the high-level entry point the CLI commands use. It ties the
// persisted configuration, the token store, and the OAuth flow together and
// maps failures onto the error taxonomy (ConfigurationError, TokenError,
// AuthenticationError).
type Session struct {
	configMgr   *config.Manager
	store       *TokenStore
	client      *pkgoauth.Client
	logger      *slog.Logger
	out         io.Writer
	openURL     func(string) error
	authTimeout time.Duration
	autoRefresh bool
	now         func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets a custom logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSessionOutput sets the sink for user-facing flow messages.
func WithSessionOutput(out io.Writer) SessionOption {
	return func(s *Session) {
		s.out = out
	}
}

// WithSessionBrowserOpener replaces the browser launcher used during login.
func WithSessionBrowserOpener(open func(url string) error) SessionOption {
	return func(s *Session) {
		s.openURL = open
	}
}

// WithSessionAuthorizeTimeout overrides the login callback timeout.
func WithSessionAuthorizeTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.authTimeout = timeout
	}
}

// WithAutoRefresh controls whether status checks transparently refresh an
// expired token when a refresh token is available. Enabled by default.
func WithAutoRefresh(enabled bool) SessionOption {
	return func(s *Session) {
		s.autoRefresh = enabled
	}
}

// WithClock replaces the time source. Tests use this to pin expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a session over the given configuration manager and
// token store.
func NewSession(configMgr *config.Manager, store *TokenStore, client *pkgoauth.Client, opts ...SessionOption) *Session {
	s := &Session{
		configMgr:   configMgr,
		store:       store,
		client:      client,
		logger:      slog.Default(),
		out:         os.Stdout,
		openURL:     OpenBrowser,
		authTimeout: AuthorizeTimeout,
		autoRefresh: true,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Status describes the current authentication state.
type Status struct {
	// Configured reports whether a provider configuration exists.
	Configured bool

	// Authenticated reports whether a usable (non-expired) token is stored.
	Authenticated bool

	// Expired reports whether a token is stored but past its expiry.
	Expired bool

	// Refreshed reports whether this status check transparently refreshed
	// the token.
	Refreshed bool

	// Record is the stored token record, if any.
	Record *TokenRecord

	// Config is the active provider configuration, if any.
	Config *config.ProviderConfig
}

// HasConfiguration reports whether a provider configuration is persisted.
func (s *Session) HasConfiguration() bool {
	return s.configMgr.Exists()
}

// Configure validates and persists the provider configuration.
// Malformed URLs and a missing client ID are rejected with ValidationError
// before anything is written.
func (s *Session) Configure(cfg *config.ProviderConfig) error {
	if err := validateURL("baseUrl", cfg.BaseURL, true); err != nil {
		return err
	}
	if cfg.ClientID == "" {
		return &ValidationError{Field: "clientId", Reason: "must not be empty"}
	}
	if cfg.RedirectURI != "" {
		if err := validateURL("redirectUri", cfg.RedirectURI, true); err != nil {
			return err
		}
	}
	for field, value := range map[string]string{
		"authorizationEndpoint": cfg.AuthorizationEndpoint,
		"tokenEndpoint":         cfg.TokenEndpoint,
		"userinfoEndpoint":      cfg.UserinfoEndpoint,
		"endSessionEndpoint":    cfg.EndSessionEndpoint,
	} {
		if value == "" {
			continue
		}
		if err := validateURL(field, value, true); err != nil {
			return err
		}
	}

	if err := s.configMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Info("Configuration saved",
		"base_url", cfg.BaseURL,
		"path", s.configMgr.Path(),
	)
	return nil
}

// Login runs the full authorization-code+PKCE flow and persists the
// resulting token record. Returns ConfigurationError when the tool has not
// been configured.
func (s *Session) Login(ctx context.Context) (*TokenRecord, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	token, err := s.newFlow(cfg).Authorize(ctx)
	if err != nil {
		return nil, err
	}

	record := NewTokenRecord(token)
	if err := s.store.Save(record); err != nil {
		return nil, fmt.Errorf("authenticated but failed to store token: %w", err)
	}

	return record, nil
}

// Refresh exchanges the stored refresh token for a new token set and
// persists it. When the provider response omits a refresh token, the
// previous one is carried forward so the session stays refreshable.
func (s *Session) Refresh(ctx context.Context) (*TokenRecord, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	record, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &TokenError{Reason: "not authenticated"}
	}
	if record.RefreshToken == "" {
		return nil, &TokenError{Reason: "no refresh token available"}
	}

	token, err := s.newFlow(cfg).Refresh(ctx, record.RefreshToken)
	if err != nil {
		return nil, err
	}

	refreshed := NewTokenRecord(token)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = record.RefreshToken
	}
	if refreshed.IDToken == "" {
		refreshed.IDToken = record.IDToken
	}

	if err := s.store.Save(refreshed); err != nil {
		return nil, fmt.Errorf("refreshed but failed to store token: %w", err)
	}

	return refreshed, nil
}

// Status reports the current authentication state. When the stored token is
// expired, a refresh token is available, and auto-refresh is enabled, the
// token is refreshed transparently before the state is reported.
func (s *Session) Status(ctx context.Context) (*Status, error) {
	status := &Status{}

	cfg, err := s.configMgr.Load()
	if err != nil {
		return nil, err
	}
	status.Configured = cfg != nil
	status.Config = cfg

	record, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return status, nil
	}
	status.Record = record

	if !record.ExpiredAt(s.now()) {
		status.Authenticated = true
		return status, nil
	}

	status.Expired = true

	if s.autoRefresh && record.RefreshToken != "" && cfg != nil {
		refreshed, err := s.Refresh(ctx)
		if err != nil {
			s.logger.Debug("Automatic token refresh failed", "error", err.Error())
			return status, nil
		}
		status.Record = refreshed
		status.Authenticated = true
		status.Expired = false
		status.Refreshed = true
	}

	return status, nil
}

// IsAuthenticated reports whether a usable token is available, refreshing
// transparently when possible.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	status, err := s.Status(ctx)
	if err != nil {
		return false
	}
	return status.Authenticated
}

// Whoami returns identity claims for the authenticated user. It prefers the
// provider's userinfo endpoint and falls back to unverified ID token claims
// when the provider exposes none.
func (s *Session) Whoami(ctx context.Context) (*pkgoauth.UserInfo, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	record, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &TokenError{Reason: "not authenticated"}
	}

	if record.ExpiredAt(s.now()) {
		if s.autoRefresh && record.RefreshToken != "" {
			record, err = s.Refresh(ctx)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, &TokenError{Reason: "access token has expired", Expired: true}
		}
	}

	flow := s.newFlow(cfg)
	if err := flow.EnsureEndpoints(ctx); err != nil {
		return nil, err
	}

	if cfg.UserinfoEndpoint == "" {
		return identityFromIDToken(record.IDToken)
	}

	info, err := flow.UserInfo(ctx, record.AccessToken)
	if err != nil {
		if errors.Is(err, pkgoauth.ErrTokenInvalid) {
			return nil, &TokenError{Reason: "the provider rejected the access token", Expired: true, Cause: err}
		}
		return nil, err
	}

	return info, nil
}

// Logout revokes the stored tokens with the provider on a best-effort basis
// and deletes the local token record. The local deletion is the binding
// guarantee: revocation failures never prevent it.
func (s *Session) Logout(ctx context.Context) error {
	record, err := s.store.Load()
	if err != nil {
		s.logger.Debug("Could not read token record during logout", "error", err.Error())
	}

	if record != nil {
		if cfg, cfgErr := s.configMgr.Load(); cfgErr == nil && cfg != nil {
			flow := s.newFlow(cfg)
			flow.Revoke(ctx, record.AccessToken, "access_token")
			flow.Revoke(ctx, record.RefreshToken, "refresh_token")
		}
	}

	return s.store.Clear()
}

// GetAccessToken returns the stored access token. It never refreshes
// implicitly: an expired token yields a TokenError with Expired set so
// scripted callers get a stable failure instead of surprise network calls.
func (s *Session) GetAccessToken() (string, error) {
	record, err := s.store.Load()
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", &TokenError{Reason: "not authenticated"}
	}
	if record.ExpiredAt(s.now()) {
		return "", &TokenError{Reason: "access token has expired", Expired: true}
	}
	return record.AccessToken, nil
}

// GetBearerToken returns the stored access token formatted as an
// Authorization header value.
func (s *Session) GetBearerToken() (string, error) {
	record, err := s.store.Load()
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", &TokenError{Reason: "not authenticated"}
	}
	if record.ExpiredAt(s.now()) {
		return "", &TokenError{Reason: "access token has expired", Expired: true}
	}
	return record.BearerToken(), nil
}

// loadConfig loads the persisted configuration, mapping absence onto
// ConfigurationError.
func (s *Session) loadConfig() (*config.ProviderConfig, error) {
	cfg, err := s.configMgr.Load()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, &ConfigurationError{Reason: "auth-pkce is not configured"}
	}
	if cfg.BaseURL == "" && !cfg.HasEndpoints() {
		return nil, &ConfigurationError{Reason: "the configuration has no provider base URL"}
	}
	if cfg.ClientID == "" {
		return nil, &ConfigurationError{Reason: "the configuration has no client ID"}
	}
	return cfg, nil
}

// newFlow builds a flow carrying the session's injected collaborators.
func (s *Session) newFlow(cfg *config.ProviderConfig) *Flow {
	return NewFlow(cfg, s.client,
		WithFlowLogger(s.logger),
		WithFlowOutput(s.out),
		WithBrowserOpener(s.openURL),
		WithAuthorizeTimeout(s.authTimeout),
	)
}

// identityFromIDToken extracts identity claims from an ID token without
// verifying its signature. The token came straight from the provider's
// token endpoint over TLS, so signature verification adds nothing here.
func identityFromIDToken(idToken string) (*pkgoauth.UserInfo, error) {
	if idToken == "" {
		return nil, errors.New("the provider exposes no userinfo endpoint and no ID token is stored")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token: %w", err)
	}

	info := &pkgoauth.UserInfo{}
	if v, ok := claims["sub"].(string); ok {
		info.Subject = v
	}
	if v, ok := claims["email"].(string); ok {
		info.Email = v
	}
	if v, ok := claims["email_verified"].(bool); ok {
		info.EmailVerified = v
	}
	if v, ok := claims["name"].(string); ok {
		info.Name = v
	}
	if v, ok := claims["preferred_username"].(string); ok {
		info.PreferredUsername = v
	}

	return info, nil
}

// validateURL checks that value parses as an absolute http(s) URL.
func validateURL(field, value string, required bool) error {
	if value == "" {
		if required {
			return &ValidationError{Field: field, Reason: "must not be empty"}
		}
		return nil
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: field, Reason: "must use http or https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: field, Reason: "missing host"}
	}

	return nil
}
