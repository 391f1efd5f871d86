package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	s := NewService("test-secret")
	s.RegisterAPICredentials("client-1", "secret-1")

	token, err := s.GenerateToken(Credentials{APIKey: "client-1", APISecret: "secret-1"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token.Token == "" {
		t.Fatal("expected a signed token")
	}
	if !token.Expiration.After(time.Now().Add(23 * time.Hour)) {
		t.Fatalf("expected ~24h expiry, got %v", token.Expiration)
	}

	claims, err := s.ValidateToken(token.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.ClientID != "client-1" {
		t.Fatalf("expected client ID client-1, got %s", claims.ClientID)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "trade" {
		t.Fatalf("unexpected permissions: %v", claims.Permissions)
	}
}

func TestGenerateToken_RejectsBadCredentials(t *testing.T) {
	s := NewService("test-secret")
	s.RegisterAPICredentials("client-1", "secret-1")

	cases := []Credentials{
		{APIKey: "client-1", APISecret: "wrong"},
		{APIKey: "unknown", APISecret: "secret-1"},
		{},
	}
	for _, creds := range cases {
		if _, err := s.GenerateToken(creds); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", creds, err)
		}
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	issuer := NewService("secret-a")
	issuer.RegisterAPICredentials("client-1", "secret-1")

	token, err := issuer.GenerateToken(Credentials{APIKey: "client-1", APISecret: "secret-1"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	verifier := NewService("secret-b")
	if _, err := verifier.ValidateToken(token.Token); err == nil {
		t.Fatal("expected validation failure with a different secret")
	}

	if _, err := issuer.ValidateToken("not-a-token"); err == nil {
		t.Fatal("expected validation failure for malformed token")
	}
}
