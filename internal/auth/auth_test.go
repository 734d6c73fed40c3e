package auth

import (
	"strings"
	"testing"
	"time"

	"ans-review/internal/config"
)

func testService(expiration time.Duration) *Service {
	return NewService(&config.JWTConfig{
		Secret:     "test-secret-key-for-testing-only",
		Expiration: expiration,
	})
}

func TestHashAndVerifyPassword(t *testing.T) {
	svc := testService(time.Hour)

	hash, err := svc.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("Hash must not equal the plaintext")
	}

	if err := svc.VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Expected password to verify: %v", err)
	}
	if err := svc.VerifyPassword(hash, "wrong password"); err == nil {
		t.Error("Expected wrong password to fail verification")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := testService(time.Hour)

	token, err := svc.GenerateToken(42, "lead@example.org", []string{"coordinator", "reviewer"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("Expected user ID 42, got %d", claims.UserID)
	}
	if claims.Email != "lead@example.org" {
		t.Errorf("Expected email lead@example.org, got %s", claims.Email)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "coordinator" {
		t.Errorf("Expected roles to round-trip, got %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Error("Expected a JTI on the token")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := testService(-time.Minute)

	token, err := svc.GenerateToken(42, "lead@example.org", nil)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	svc := testService(time.Hour)

	token, err := svc.GenerateToken(42, "lead@example.org", nil)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected a three-part JWT, got %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	if _, err := svc.ValidateToken(tampered); err == nil {
		t.Error("Expected tampered token to be rejected")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := testService(time.Hour).GenerateToken(42, "lead@example.org", nil)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	other := NewService(&config.JWTConfig{Secret: "a-different-secret", Expiration: time.Hour})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestGenerateRandomToken(t *testing.T) {
	a, err := GenerateRandomToken(16)
	if err != nil {
		t.Fatalf("Failed to generate random token: %v", err)
	}
	b, err := GenerateRandomToken(16)
	if err != nil {
		t.Fatalf("Failed to generate random token: %v", err)
	}
	if a == b {
		t.Error("Expected two random tokens to differ")
	}
}
