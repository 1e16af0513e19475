package auth

import (
	"testing"
	"time"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	signed, err := issuer.Issue(42, "ada")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.UserID != 42 || claims.LoginName != "ada" {
		t.Errorf("claims = %+v, want UserID=42 LoginName=ada", claims)
	}
}

func TestTokenIssuerRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokenIssuer("secret-a").Issue(1, "a")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := NewTokenIssuer("secret-b").Verify(signed); err == nil {
		t.Fatal("expected Verify() to reject a token signed with a different secret")
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := &TokenIssuer{secret: []byte("s"), ttl: -time.Minute}
	signed, err := issuer.Issue(1, "a")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := issuer.Verify(signed); err == nil {
		t.Fatal("expected Verify() to reject an expired token")
	}
}
