package auth

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ConfigurationError indicates the tool has not been configured, or the
// persisted configuration is unusable.
type ConfigurationError struct {
	// Reason describes what is missing or invalid.
	Reason string
}

// Error returns a user-friendly message with actionable guidance.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(`%s

To configure, run:
  auth-pkce configure --base-url <provider-url> --client-id <client-id>`, e.Reason)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// AuthenticationError indicates the authorization flow failed: provider
// denial, state mismatch, malformed callback, or callback timeout.
type AuthenticationError struct {
	// Reason describes the failure (includes the provider error code when
	// the provider denied the request).
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a user-friendly message with actionable guidance.
func (e *AuthenticationError) Error() string {
	msg := "authentication failed: " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg + "\n\nTo retry, run:\n  auth-pkce login"
}

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthenticationError) Is(target error) bool {
	_, ok := target.(*AuthenticationError)
	return ok
}

// TokenError indicates a problem with the stored token: missing, expired,
// or a failed refresh.
type TokenError struct {
	// Reason describes the token problem.
	Reason string
	// Expired marks the expired-token condition distinctly so callers can
	// suggest a refresh rather than a full login.
	Expired bool
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a user-friendly message with actionable guidance.
func (e *TokenError) Error() string {
	msg := e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Expired {
		return msg + "\n\nTo refresh, run:\n  auth-pkce refresh\n\nOr authenticate again:\n  auth-pkce login"
	}
	return msg + "\n\nTo authenticate, run:\n  auth-pkce login"
}

// Unwrap returns the underlying error.
func (e *TokenError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to work with wrapped errors.
func (e *TokenError) Is(target error) bool {
	_, ok := target.(*TokenError)
	return ok
}

// ValidationError indicates malformed input: an unparseable URL or a
// missing required field.
type ValidationError struct {
	// Field is the offending field name.
	Field string
	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NetworkErrorType categorizes the type of network error.
type NetworkErrorType int

const (
	// NetworkErrorUnknown indicates an unclassified network error.
	NetworkErrorUnknown NetworkErrorType = iota
	// NetworkErrorDNS indicates a DNS resolution failure.
	NetworkErrorDNS
	// NetworkErrorTimeout indicates a request timeout.
	NetworkErrorTimeout
	// NetworkErrorConnection indicates a connectivity failure
	// (refused, reset, unreachable).
	NetworkErrorConnection
)

// String returns a human-readable name for the network error type.
func (t NetworkErrorType) String() string {
	switch t {
	case NetworkErrorDNS:
		return "DNS resolution error"
	case NetworkErrorTimeout:
		return "Request timeout"
	case NetworkErrorConnection:
		return "Connection error"
	default:
		return "Network error"
	}
}

// NetworkError indicates a transport-level failure reaching the provider.
// It wraps the underlying error and categorizes it for better user feedback.
type NetworkError struct {
	// Endpoint is the URL that could not be reached.
	Endpoint string
	// Type categorizes the failure.
	Type NetworkErrorType
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s reaching %s: %v", e.Type, e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to work with wrapped errors.
func (e *NetworkError) Is(target error) bool {
	_, ok := target.(*NetworkError)
	return ok
}

// ClassifyNetworkError analyzes a transport error and returns a
// NetworkError with the appropriate type, or nil for a nil error.
func ClassifyNetworkError(err error, endpoint string) *NetworkError {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &NetworkError{Endpoint: endpoint, Type: NetworkErrorDNS, Cause: err}
	}

	if isTimeoutError(err) {
		return &NetworkError{Endpoint: endpoint, Type: NetworkErrorTimeout, Cause: err}
	}

	if isConnectionError(err.Error()) {
		return &NetworkError{Endpoint: endpoint, Type: NetworkErrorConnection, Cause: err}
	}

	return &NetworkError{Endpoint: endpoint, Type: NetworkErrorUnknown, Cause: err}
}

// isTimeoutError checks if the error is a timeout.
func isTimeoutError(err error) bool {
	// Check for net.Error timeout (interface, needs manual unwrapping)
	for e := err; e != nil; {
		if ne, ok := e.(net.Error); ok && ne.Timeout() {
			return true
		}
		if u, ok := e.(interface{ Unwrap() error }); ok {
			e = u.Unwrap()
		} else {
			break
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isConnectionError checks if the error string indicates a connectivity issue.
func isConnectionError(errStr string) bool {
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	}

	for _, keyword := range connectionKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
