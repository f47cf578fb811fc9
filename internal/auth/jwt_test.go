package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("test-secret-key", 0)

	token, issued, err := tokens.Issue("u-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u-1" {
		t.Errorf("expected user id 'u-1', got %q", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("expected username 'alice', got %q", claims.Username)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("expected JTI %q, got %q", issued.ID, claims.ID)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, _, _ := NewTokens("secret1", 0).Issue("u-1", "alice")

	if _, err := NewTokens("secret2", 0).Parse(token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := NewTokens("secret", 0).Parse("not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestParseExpired(t *testing.T) {
	tokens := &Tokens{Secret: []byte("secret"), Expiry: -time.Minute}
	token, _, err := tokens.Issue("u-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Parse(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestConfiguredExpiry(t *testing.T) {
	tokens := NewTokens("test", 2*time.Hour)
	_, claims, _ := tokens.Issue("u-1", "alice")

	diff := time.Until(claims.ExpiresAt.Time) - 2*time.Hour
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected wrong password to be rejected")
	}
}
