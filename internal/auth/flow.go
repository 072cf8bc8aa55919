package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alishah730/auth-pkce/internal/config"
	pkgoauth "github.com/alishah730/auth-pkce/pkg/oauth"
)

// pendingAuthorization holds the secrets of one in-flight authorization
// attempt, keyed by its state token. It is consumed exactly once by the
// matching callback and lives only in memory.
type pendingAuthorization struct {
	State        string
	CodeVerifier string
	RedirectURI  string
	CreatedAt    time.Time
}

// Flow orchestrates a single OAuth authorization-code+PKCE attempt against
// the configured provider, and performs refresh, userinfo, and revocation
// calls against the resolved endpoints.
//
// The flow mutates only its in-memory copy of the provider configuration
// (endpoint resolution); persistence is the caller's concern.
type Flow struct {
	cfg     *config.ProviderConfig
	client  *pkgoauth.Client
	logger  *slog.Logger
	out     io.Writer
	openURL func(string) error
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingAuthorization
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithFlowLogger sets a custom logger.
func WithFlowLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithFlowOutput sets the sink for user-facing flow messages (the printed
// authorization URL fallback). Use io.Discard for silent operation.
func WithFlowOutput(out io.Writer) FlowOption {
	return func(f *Flow) {
		f.out = out
	}
}

// WithBrowserOpener replaces the browser launcher. Tests inject an opener
// that drives the callback programmatically.
func WithBrowserOpener(open func(url string) error) FlowOption {
	return func(f *Flow) {
		f.openURL = open
	}
}

// WithAuthorizeTimeout overrides the callback wait timeout.
func WithAuthorizeTimeout(timeout time.Duration) FlowOption {
	return func(f *Flow) {
		f.timeout = timeout
	}
}

// NewFlow creates a flow for the given provider configuration.
// The configuration is used as-is; callers pass the loaded config and the
// flow populates missing endpoints in place after discovery.
func NewFlow(cfg *config.ProviderConfig, client *pkgoauth.Client, opts ...FlowOption) *Flow {
	f := &Flow{
		cfg:     cfg,
		client:  client,
		logger:  slog.Default(),
		out:     os.Stdout,
		openURL: OpenBrowser,
		timeout: AuthorizeTimeout,
		pending: make(map[string]*pendingAuthorization),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// EnsureEndpoints resolves the authorization, token, userinfo, and
// end-session endpoints from the provider's discovery document when they
// are not already set on the configuration. Idempotent and side-effect-free
// when the required endpoints are present.
func (f *Flow) EnsureEndpoints(ctx context.Context) error {
	if f.cfg.HasEndpoints() {
		return nil
	}

	metadata, err := f.client.DiscoverMetadata(ctx, f.cfg.BaseURL)
	if err != nil {
		if errors.Is(err, pkgoauth.ErrDiscoveryNotFound) {
			return err
		}
		if netErr := ClassifyNetworkError(err, f.cfg.BaseURL); netErr != nil && netErr.Type != NetworkErrorUnknown {
			return netErr
		}
		return err
	}

	if !metadata.SupportsPKCE() {
		f.logger.Warn("Provider does not advertise S256 PKCE support, proceeding anyway",
			"base_url", f.cfg.BaseURL)
	}

	if f.cfg.AuthorizationEndpoint == "" {
		f.cfg.AuthorizationEndpoint = metadata.AuthorizationEndpoint
	}
	if f.cfg.TokenEndpoint == "" {
		f.cfg.TokenEndpoint = metadata.TokenEndpoint
	}
	if f.cfg.UserinfoEndpoint == "" {
		f.cfg.UserinfoEndpoint = metadata.UserinfoEndpoint
	}
	if f.cfg.EndSessionEndpoint == "" {
		f.cfg.EndSessionEndpoint = metadata.EndSessionEndpoint
	}

	return nil
}

// Authorize runs one full authorization attempt: it generates the PKCE
// challenge and state, starts the loopback callback listener, opens the
// authorization URL in the user's browser (printing it as a fallback),
// waits for exactly one callback, and exchanges the authorization code for
// tokens.
//
// The listener is stopped on every exit path: success, provider error,
// malformed callback, and timeout.
func (f *Flow) Authorize(ctx context.Context) (*pkgoauth.Token, error) {
	if err := f.EnsureEndpoints(ctx); err != nil {
		return nil, err
	}

	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE challenge: %w", err)
	}

	state, err := pkgoauth.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	server, err := NewCallbackServer(f.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	// The listener must be released on every exit path.
	defer server.Stop()

	redirectURI := server.RedirectURI()
	f.storePending(&pendingAuthorization{
		State:        state,
		CodeVerifier: pkce.CodeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    time.Now(),
	})
	// Discard the entry if the callback never consumed it.
	defer f.consumePending(state)

	authURL, err := f.client.BuildAuthorizationURL(
		f.cfg.AuthorizationEndpoint,
		f.cfg.ClientID,
		redirectURI,
		state,
		f.cfg.Scope,
		pkce,
	)
	if err != nil {
		return nil, err
	}

	if err := f.openURL(authURL); err != nil {
		f.logger.Debug("Failed to open browser", "error", err.Error())
		fmt.Fprintf(f.out, "Could not open a browser automatically.\n\nPlease open this URL to authenticate:\n  %s\n\n", authURL)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := server.WaitForCallback(timeoutCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &AuthenticationError{
				Reason: fmt.Sprintf("timed out after %s waiting for the authorization callback", f.timeout),
			}
		}
		return nil, &AuthenticationError{Reason: "authorization callback failed", Cause: err}
	}

	if result.IsError() {
		reason := "provider denied the authorization request: " + result.Error
		if result.ErrorDescription != "" {
			reason += " (" + result.ErrorDescription + ")"
		}
		return nil, &AuthenticationError{Reason: reason}
	}

	// State binding: the callback must carry the state issued for this
	// attempt, and the entry is consumed exactly once.
	pending := f.consumePending(result.State)
	if pending == nil {
		f.logger.Warn("OAuth state mismatch detected, possible CSRF attack",
			"received_state_len", len(result.State))
		return nil, &AuthenticationError{Reason: "state mismatch in authorization callback"}
	}

	if result.Code == "" {
		return nil, &AuthenticationError{Reason: "authorization callback is missing the code parameter"}
	}

	token, err := f.client.ExchangeCode(ctx, f.cfg.TokenEndpoint, result.Code, pending.RedirectURI, f.cfg.ClientID, pending.CodeVerifier)
	if err != nil {
		return nil, &AuthenticationError{Reason: "token exchange failed", Cause: err}
	}

	f.logger.Info("Authorization flow completed", "base_url", f.cfg.BaseURL)
	return token, nil
}

// Refresh obtains a new token set using a refresh token.
// Provider error responses surface the provider's error_description when
// present (via pkg/oauth.TokenRequestError).
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*pkgoauth.Token, error) {
	if err := f.EnsureEndpoints(ctx); err != nil {
		return nil, err
	}

	token, err := f.client.RefreshToken(ctx, f.cfg.TokenEndpoint, refreshToken, f.cfg.ClientID)
	if err != nil {
		return nil, &TokenError{Reason: "token refresh failed", Cause: err}
	}

	return token, nil
}

// UserInfo fetches identity claims for the access token.
// Returns pkg/oauth.ErrTokenInvalid (wrapped) when the provider rejects the
// token with a 401.
func (f *Flow) UserInfo(ctx context.Context, accessToken string) (*pkgoauth.UserInfo, error) {
	if err := f.EnsureEndpoints(ctx); err != nil {
		return nil, err
	}

	if f.cfg.UserinfoEndpoint == "" {
		return nil, errors.New("no userinfo endpoint configured")
	}

	return f.client.UserInfo(ctx, f.cfg.UserinfoEndpoint, accessToken)
}

// Revoke posts the token to the provider's end-session endpoint.
// Revocation is best-effort: a missing endpoint is a logged no-op and
// failures are logged, never returned. Local token deletion is the binding
// logout guarantee, not remote revocation.
func (f *Flow) Revoke(ctx context.Context, token, tokenTypeHint string) {
	if token == "" {
		return
	}

	if f.cfg.EndSessionEndpoint == "" {
		f.logger.Warn("No revocation endpoint configured, skipping remote revocation",
			"token_type_hint", tokenTypeHint)
		return
	}

	if err := f.client.RevokeToken(ctx, f.cfg.EndSessionEndpoint, token, tokenTypeHint); err != nil {
		f.logger.Warn("Token revocation failed, continuing with local logout",
			"token_type_hint", tokenTypeHint,
			"error", err.Error())
	}
}

// storePending records an in-flight authorization attempt.
func (f *Flow) storePending(p *pendingAuthorization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[p.State] = p
}

// consumePending removes and returns the pending authorization for the
// given state. Returns nil when no matching entry exists; an entry can be
// consumed at most once.
func (f *Flow) consumePending(state string) *pendingAuthorization {
	if state == "" {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pending[state]
	if !ok {
		return nil
	}
	delete(f.pending, state)
	return p
}

// PendingCount returns the number of in-flight authorization attempts.
func (f *Flow) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
