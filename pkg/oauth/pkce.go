package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes provides 256 bits of entropy and encodes to a 43-character
	// base64url string, the minimum verifier length allowed by RFC 7636.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	// 32 bytes encodes to 43 base64url characters, satisfying OAuth servers that
	// require a minimum of 32 characters.
	stateBytes = 32

	// CodeChallengeMethodS256 is the only code challenge method this client uses.
	CodeChallengeMethodS256 = "S256"
)

// GeneratePKCE generates a new PKCE code verifier and challenge.
// The code verifier is 32 random bytes (256 bits), base64url-encoded.
// The code challenge is the S256 (SHA256) hash of the verifier.
//
// Returns a PKCEChallenge ready for use in an authorization request.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, challenge, err := GeneratePKCERaw()
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// GeneratePKCERaw generates a PKCE code verifier and challenge as raw strings.
// This is useful when the full PKCEChallenge struct is not needed.
//
// Returns the verifier and its S256 challenge.
func GeneratePKCERaw() (verifier, challenge string, err error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	// Base64url-encode the verifier (no padding, URL-safe)
	verifier = base64.RawURLEncoding.EncodeToString(verifierBytes)
	challenge = ComputeCodeChallenge(verifier)

	return verifier, challenge, nil
}

// ComputeCodeChallenge derives the S256 code challenge for a verifier:
// SHA256 over the verifier's ASCII bytes, base64url-encoded without padding.
// Deterministic: equal verifiers always yield equal challenges.
func ComputeCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState generates a random state parameter for OAuth.
// The state is used to prevent CSRF attacks and link the authorization
// response back to the original request. It is never reused across flows.
//
// Returns a base64url-encoded random string.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
