package oauth

import (
	"errors"
	"fmt"
)

// ErrDiscoveryNotFound indicates the provider returned HTTP 404 for the
// well-known discovery document. This usually means the base URL is wrong
// or the provider does not expose OpenID Connect discovery.
var ErrDiscoveryNotFound = errors.New("discovery endpoint not found")

// ErrTokenInvalid indicates the provider rejected the access token
// (HTTP 401 from the userinfo endpoint). The token is expired or revoked.
var ErrTokenInvalid = errors.New("access token invalid or expired")

// TokenRequestError is a structured error response from the token endpoint
// (RFC 6749 section 5.2). The provider's error_description, when present,
// is surfaced verbatim to the caller.
type TokenRequestError struct {
	// StatusCode is the HTTP status returned by the token endpoint.
	StatusCode int

	// Code is the OAuth error code (e.g. "invalid_grant").
	Code string `json:"error"`

	// Description is the human-readable error_description, if any.
	Description string `json:"error_description"`
}

// Error returns the provider's description when present, otherwise the
// error code with the HTTP status.
func (e *TokenRequestError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return fmt.Sprintf("token request failed: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("token request failed with status %d", e.StatusCode)
}

// Is allows errors.Is() to match any TokenRequestError.
func (e *TokenRequestError) Is(target error) bool {
	_, ok := target.(*TokenRequestError)
	return ok
}
