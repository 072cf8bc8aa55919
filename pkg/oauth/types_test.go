package oauth

import (
	"testing"
	"time"
)

func TestToken_SetExpiresAtFromExpiresIn(t *testing.T) {
	token := &Token{
		AccessToken: "test-token",
		ExpiresIn:   3600,
	}

	before := time.Now()
	token.SetExpiresAtFromExpiresIn()
	after := time.Now()

	if token.ExpiresAt.IsZero() {
		t.Fatal("ExpiresAt should be set from ExpiresIn")
	}

	wantMin := before.Add(3600 * time.Second)
	wantMax := after.Add(3600 * time.Second)
	if token.ExpiresAt.Before(wantMin) || token.ExpiresAt.After(wantMax) {
		t.Errorf("ExpiresAt = %v, want within [%v, %v]", token.ExpiresAt, wantMin, wantMax)
	}
}

func TestToken_SetExpiresAtFromExpiresIn_NoOverwrite(t *testing.T) {
	explicit := time.Now().Add(10 * time.Minute)
	token := &Token{
		AccessToken: "test-token",
		ExpiresIn:   3600,
		ExpiresAt:   explicit,
	}

	token.SetExpiresAtFromExpiresIn()

	if !token.ExpiresAt.Equal(explicit) {
		t.Errorf("ExpiresAt = %v, want unchanged %v", token.ExpiresAt, explicit)
	}
}

func TestToken_SetExpiresAtFromExpiresIn_ZeroExpiresIn(t *testing.T) {
	token := &Token{AccessToken: "test-token"}
	token.SetExpiresAtFromExpiresIn()

	if !token.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero when ExpiresIn is unset", token.ExpiresAt)
	}
}

func TestToken_Scopes(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  int
	}{
		{"empty", "", 0},
		{"single", "openid", 1},
		{"multiple", "openid profile email", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &Token{Scope: tt.scope}
			if got := len(token.Scopes()); got != tt.want {
				t.Errorf("Scopes() returned %d scopes, want %d", got, tt.want)
			}
		})
	}
}

func TestToken_ToOAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	token := &Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		ExpiresAt:    expiry,
		IDToken:      "id-token",
	}

	converted := token.ToOAuth2Token()

	if converted.AccessToken != "access" {
		t.Errorf("AccessToken = %q, want %q", converted.AccessToken, "access")
	}
	if converted.RefreshToken != "refresh" {
		t.Errorf("RefreshToken = %q, want %q", converted.RefreshToken, "refresh")
	}
	if !converted.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", converted.Expiry, expiry)
	}
	if got := converted.Extra("id_token"); got != "id-token" {
		t.Errorf("Extra(id_token) = %v, want %q", got, "id-token")
	}
}

func TestMetadata_SupportsPKCE(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		want    bool
	}{
		{"S256 advertised", []string{"plain", "S256"}, true},
		{"only plain", []string{"plain"}, false},
		{"unspecified assumes support", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Metadata{CodeChallengeMethodsSupported: tt.methods}
			if got := m.SupportsPKCE(); got != tt.want {
				t.Errorf("SupportsPKCE() = %v, want %v", got, tt.want)
			}
		})
	}
}
