// Package oauth implements the OAuth 2.0 protocol operations used by the
// auth-pkce CLI: PKCE challenge generation, provider metadata discovery,
// authorization URL construction, token exchange, token refresh, token
// revocation, and userinfo retrieval.
//
// The package is transport-only: it never persists tokens or configuration.
// Storage and flow orchestration live in internal/auth and internal/config.
//
// All operations follow the Authorization Code Grant with PKCE (RFC 7636)
// as required for public clients. The plain code challenge method is not
// supported; S256 is always used.
package oauth
