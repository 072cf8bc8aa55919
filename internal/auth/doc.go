// Package auth implements the OAuth authorization flow and session
// lifecycle for the auth-pkce CLI.
//
// The package has three layers:
//
//   - TokenStore persists the token record in the state directory with
//     owner-only file permissions and atomic writes.
//   - Flow orchestrates a single authorization attempt: endpoint
//     resolution via discovery, PKCE and state generation, the ephemeral
//     loopback callback listener, browser launch, and the code exchange.
//     It also performs token refresh, userinfo lookup, and best-effort
//     revocation against the resolved endpoints.
//   - Session is the facade the CLI commands call: Login, Logout, Status,
//     Whoami, Refresh, and the token accessors. It enforces the
//     auth-state invariants (auto-refresh on status, strict accessors)
//     and guarantees logout always clears local state.
//
// One authorization attempt is in flight at a time per Session, though
// pending authorization state is keyed by the OAuth state token so
// overlapping attempts fail safely rather than corrupting each other.
// There is no cross-process locking: concurrent CLI invocations may race
// on the config and token files.
package auth
