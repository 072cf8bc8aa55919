package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token represents an OAuth access token with associated metadata as
// returned by the token endpoint.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds (from the token response).
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the calculated absolute expiration timestamp.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`
}

// SetExpiresAtFromExpiresIn calculates and sets ExpiresAt from ExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility
// with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// Metadata represents the provider metadata document fetched from the
// well-known discovery endpoint (OpenID Connect Discovery 1.0).
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// UserinfoEndpoint is the URL of the userinfo endpoint (OIDC).
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// EndSessionEndpoint is the URL used for logout/revocation (optional).
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set.
	JwksURI string `json:"jwks_uri,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the response_type values supported.
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`

	// GrantTypesSupported lists the grant types supported.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the server advertises S256 PKCE support.
// This is advisory only: the flow always proceeds with PKCE and logs a
// warning when the server does not advertise it.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == CodeChallengeMethodS256 {
			return true
		}
	}
	// If not specified, assume S256 is supported (OAuth 2.1 requirement)
	return len(m.CodeChallengeMethodsSupported) == 0
}

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
// PKCE binds an authorization code to a client-held secret, preventing
// authorization code interception attacks.
type PKCEChallenge struct {
	// CodeVerifier is the cryptographically random string (base64url-encoded).
	// This is kept secret and never transmitted to the browser.
	CodeVerifier string

	// CodeChallenge is the SHA256 hash of the verifier (base64url-encoded).
	// This is sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256" (plain is not allowed).
	CodeChallengeMethod string
}

// UserInfo holds the identity claims returned by the userinfo endpoint.
type UserInfo struct {
	// Subject is the unique user identifier (sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address.
	Email string `json:"email,omitempty"`

	// EmailVerified indicates whether the email has been verified.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`

	// PreferredUsername is the user's preferred handle.
	PreferredUsername string `json:"preferred_username,omitempty"`
}
