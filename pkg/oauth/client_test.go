package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// newDiscoveryServer returns a test provider that serves a discovery
// document at the well-known path, derived from its own base URL.
func newDiscoveryServer(t *testing.T, mutate func(m *Metadata)) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DiscoveryPath {
			http.NotFound(w, r)
			return
		}

		metadata := Metadata{
			Issuer:                        server.URL,
			AuthorizationEndpoint:         server.URL + "/authorize",
			TokenEndpoint:                 server.URL + "/token",
			UserinfoEndpoint:              server.URL + "/userinfo",
			EndSessionEndpoint:            server.URL + "/logout",
			CodeChallengeMethodsSupported: []string{"S256"},
		}
		if mutate != nil {
			mutate(&metadata)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metadata)
	}))

	t.Cleanup(server.Close)
	return server
}

func TestClient_DiscoverMetadata(t *testing.T) {
	server := newDiscoveryServer(t, nil)
	client := NewClient()

	// Trailing slash must be stripped before building the well-known URL
	metadata, err := client.DiscoverMetadata(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("DiscoverMetadata() error = %v", err)
	}

	if metadata.AuthorizationEndpoint != server.URL+"/authorize" {
		t.Errorf("AuthorizationEndpoint = %q, want %q", metadata.AuthorizationEndpoint, server.URL+"/authorize")
	}
	if metadata.TokenEndpoint != server.URL+"/token" {
		t.Errorf("TokenEndpoint = %q, want %q", metadata.TokenEndpoint, server.URL+"/token")
	}
}

func TestClient_DiscoverMetadata_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.DiscoverMetadata(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 discovery response")
	}

	// A 404 must be classified distinctly from generic failures
	if !errors.Is(err, ErrDiscoveryNotFound) {
		t.Errorf("error = %v, want ErrDiscoveryNotFound", err)
	}
}

func TestClient_DiscoverMetadata_GenericFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.DiscoverMetadata(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 500 discovery response")
	}
	if errors.Is(err, ErrDiscoveryNotFound) {
		t.Error("500 response must not be classified as ErrDiscoveryNotFound")
	}
}

func TestClient_DiscoverMetadata_MissingEndpoints(t *testing.T) {
	server := newDiscoveryServer(t, func(m *Metadata) {
		m.TokenEndpoint = ""
	})

	client := NewClient()
	_, err := client.DiscoverMetadata(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for discovery document without token_endpoint")
	}
}

func TestClient_DiscoverMetadata_Cached(t *testing.T) {
	fetches := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Metadata{
			Issuer:                server.URL,
			AuthorizationEndpoint: server.URL + "/authorize",
			TokenEndpoint:         server.URL + "/token",
		})
	}))
	defer server.Close()

	client := NewClient()
	for i := 0; i < 3; i++ {
		if _, err := client.DiscoverMetadata(context.Background(), server.URL); err != nil {
			t.Fatalf("DiscoverMetadata() error = %v", err)
		}
	}

	if fetches != 1 {
		t.Errorf("discovery document fetched %d times, want 1", fetches)
	}
}

func TestClient_BuildAuthorizationURL(t *testing.T) {
	client := NewClient()
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE() error = %v", err)
	}

	rawURL, err := client.BuildAuthorizationURL(
		"https://idp.example.com/authorize",
		"my-client",
		"http://localhost:3000/callback",
		"my-state",
		"openid profile",
		pkce,
	)
	if err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("failed to parse authorization URL: %v", err)
	}

	query := parsed.Query()
	want := map[string]string{
		"response_type":         "code",
		"client_id":             "my-client",
		"redirect_uri":          "http://localhost:3000/callback",
		"state":                 "my-state",
		"scope":                 "openid profile",
		"code_challenge":        pkce.CodeChallenge,
		"code_challenge_method": "S256",
	}
	for key, value := range want {
		if got := query.Get(key); got != value {
			t.Errorf("query[%s] = %q, want %q", key, got, value)
		}
	}
}

func TestClient_ExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.PostForm.Get("code"); got != "abc123" {
			t.Errorf("code = %q, want abc123", got)
		}
		if got := r.PostForm.Get("code_verifier"); got != "the-verifier" {
			t.Errorf("code_verifier = %q, want the-verifier", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T1","token_type":"Bearer","expires_in":3600,"refresh_token":"R1"}`))
	}))
	defer server.Close()

	client := NewClient()
	token, err := client.ExchangeCode(context.Background(), server.URL, "abc123", "http://localhost:3000/callback", "my-client", "the-verifier")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if token.AccessToken != "T1" {
		t.Errorf("AccessToken = %q, want T1", token.AccessToken)
	}
	if token.RefreshToken != "R1" {
		t.Errorf("RefreshToken = %q, want R1", token.RefreshToken)
	}
	if token.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be derived from expires_in")
	}
}

func TestClient_ExchangeCode_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code has expired"}`))
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.ExchangeCode(context.Background(), server.URL, "stale", "http://localhost:3000/callback", "my-client", "v")
	if err == nil {
		t.Fatal("expected error for provider error response")
	}

	var tokenErr *TokenRequestError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("error = %T, want *TokenRequestError", err)
	}
	if tokenErr.Code != "invalid_grant" {
		t.Errorf("Code = %q, want invalid_grant", tokenErr.Code)
	}
	// error_description must be surfaced verbatim
	if !strings.Contains(err.Error(), "code has expired") {
		t.Errorf("error message %q should contain the provider description", err.Error())
	}
}

func TestClient_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "R1" {
			t.Errorf("refresh_token = %q, want R1", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	client := NewClient()
	token, err := client.RefreshToken(context.Background(), server.URL, "R1", "my-client")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	if token.AccessToken != "T2" {
		t.Errorf("AccessToken = %q, want T2", token.AccessToken)
	}
	// Providers may omit refresh_token on refresh; that is the caller's concern
	if token.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", token.RefreshToken)
	}
}

func TestClient_UserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer T1" {
			t.Errorf("Authorization = %q, want Bearer T1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"user-1","email":"user@example.com","name":"User One"}`))
	}))
	defer server.Close()

	client := NewClient()
	info, err := client.UserInfo(context.Background(), server.URL, "T1")
	if err != nil {
		t.Fatalf("UserInfo() error = %v", err)
	}

	if info.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", info.Subject)
	}
	if info.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", info.Email)
	}
}

func TestClient_UserInfo_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.UserInfo(context.Background(), server.URL, "stale")
	if err == nil {
		t.Fatal("expected error for 401 userinfo response")
	}

	// 401 must be classified distinctly so callers can suggest a refresh
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestClient_RevokeToken(t *testing.T) {
	var gotToken, gotHint string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotToken = r.PostForm.Get("token")
		gotHint = r.PostForm.Get("token_type_hint")
	}))
	defer server.Close()

	client := NewClient()
	if err := client.RevokeToken(context.Background(), server.URL, "T1", "access_token"); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}

	if gotToken != "T1" {
		t.Errorf("token = %q, want T1", gotToken)
	}
	if gotHint != "access_token" {
		t.Errorf("token_type_hint = %q, want access_token", gotHint)
	}
}

func TestClient_RevokeToken_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient()
	if err := client.RevokeToken(context.Background(), server.URL, "T1", "access_token"); err == nil {
		t.Fatal("expected error for failed revocation")
	}
}
