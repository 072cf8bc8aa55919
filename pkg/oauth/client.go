package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DiscoveryPath is the well-known path for the provider metadata
	// document, relative to the configured base URL.
	DiscoveryPath = "/oauth2/token/.well-known/openid-configuration"

	// DiscoveryTimeout bounds the metadata discovery request.
	DiscoveryTimeout = 10 * time.Second

	// UserinfoTimeout bounds userinfo requests.
	UserinfoTimeout = 10 * time.Second

	// TokenTimeout bounds token endpoint requests (exchange and refresh).
	TokenTimeout = 30 * time.Second

	// DefaultUserAgent identifies this client to the provider.
	DefaultUserAgent = "auth-pkce"
)

// Client handles OAuth 2.0 protocol operations: metadata discovery, token
// exchange, token refresh, revocation, and userinfo retrieval.
//
// Discovery results are cached per base URL for the lifetime of the client;
// concurrent fetches for the same base URL are deduplicated.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	metadataMu    sync.RWMutex
	metadataCache map[string]*Metadata

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent on provider requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: TokenTimeout},
		logger:        slog.Default(),
		userAgent:     DefaultUserAgent,
		metadataCache: make(map[string]*Metadata),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DiscoverMetadata fetches the provider metadata document from
// {baseURL}/oauth2/token/.well-known/openid-configuration.
//
// A trailing slash on baseURL is stripped. An HTTP 404 is reported as
// ErrDiscoveryNotFound; any other network or HTTP failure wraps the
// underlying cause. The document must carry both authorization_endpoint
// and token_endpoint or discovery fails.
//
// Results are cached per base URL for the lifetime of the process.
func (c *Client) DiscoverMetadata(ctx context.Context, baseURL string) (*Metadata, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	c.metadataMu.RLock()
	if metadata, ok := c.metadataCache[baseURL]; ok {
		c.metadataMu.RUnlock()
		return metadata, nil
	}
	c.metadataMu.RUnlock()

	// Use singleflight to deduplicate concurrent fetches
	result, err, _ := c.metadataGroup.Do(baseURL, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		c.metadataMu.RLock()
		if metadata, ok := c.metadataCache[baseURL]; ok {
			c.metadataMu.RUnlock()
			return metadata, nil
		}
		c.metadataMu.RUnlock()

		return c.doDiscoverMetadata(ctx, baseURL)
	})

	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

// doDiscoverMetadata performs the actual HTTP fetch for provider metadata.
func (c *Client) doDiscoverMetadata(ctx context.Context, baseURL string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, DiscoveryTimeout)
	defer cancel()

	wellKnownURL := baseURL + DiscoveryPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request to %s failed: %w", wellKnownURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s returned 404", ErrDiscoveryNotFound, wellKnownURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery request to %s failed with status %d", wellKnownURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery response: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse discovery document: %w", err)
	}

	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, errors.New("discovery document is missing authorization_endpoint or token_endpoint")
	}

	c.metadataMu.Lock()
	c.metadataCache[baseURL] = &metadata
	c.metadataMu.Unlock()

	c.logger.Debug("Cached provider metadata",
		"base_url", baseURL,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)

	return &metadata, nil
}

// BuildAuthorizationURL constructs an OAuth authorization URL for the
// Authorization Code Grant with PKCE.
func (c *Client) BuildAuthorizationURL(authEndpoint, clientID, redirectURI, state, scope string, pkce *PKCEChallenge) (string, error) {
	authURL, err := url.Parse(authEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)

	if scope != "" {
		query.Set("scope", scope)
	}

	if pkce != nil {
		query.Set("code_challenge", pkce.CodeChallenge)
		query.Set("code_challenge_method", pkce.CodeChallengeMethod)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, tokenEndpoint, code, redirectURI, clientID, codeVerifier string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {codeVerifier},
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// RefreshToken obtains a new access token using a refresh token.
func (c *Client) RefreshToken(ctx context.Context, tokenEndpoint, refreshToken, clientID string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// doTokenRequest performs a token endpoint request.
// Provider error responses are surfaced as *TokenRequestError so callers
// can report the provider's error_description.
func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, data url.Values) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, TokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		tokenErr := &TokenRequestError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, tokenErr); err != nil {
			c.logger.Debug("Token request failed with unparseable body",
				"status", resp.StatusCode,
				"grant_type", data.Get("grant_type"))
		}
		return nil, tokenErr
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if token.AccessToken == "" {
		return nil, errors.New("token response is missing access_token")
	}

	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// UserInfo fetches the identity claims for an access token from the
// userinfo endpoint. An HTTP 401 is reported as ErrTokenInvalid so callers
// can distinguish an expired token from a generic failure.
func (c *Client) UserInfo(ctx context.Context, userinfoEndpoint, accessToken string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, UserinfoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: userinfo returned 401", ErrTokenInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}

	return &info, nil
}

// RevokeToken posts a token to the provider's end-session/revocation
// endpoint with the given token_type_hint. A non-2xx response is an error;
// callers decide whether revocation failures are fatal (the session layer
// treats them as best-effort).
func (c *Client) RevokeToken(ctx context.Context, revocationEndpoint, token, tokenTypeHint string) error {
	ctx, cancel := context.WithTimeout(ctx, TokenTimeout)
	defer cancel()

	data := url.Values{
		"token":           {token},
		"token_type_hint": {tokenTypeHint},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revocationEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain the body so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revocation request failed with status %d", resp.StatusCode)
	}

	return nil
}

// ClearMetadataCache clears the discovery cache.
// Useful for testing or when metadata needs to be refreshed immediately.
func (c *Client) ClearMetadataCache() {
	c.metadataMu.Lock()
	c.metadataCache = make(map[string]*Metadata)
	c.metadataMu.Unlock()
}
