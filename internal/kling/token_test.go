package kling

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignToken_Claims(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tokenString, err := signToken("access-key", "secret-key", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(tk *jwt.Token) (any, error) {
		if tk.Method.Alg() != "HS256" {
			t.Errorf("expected alg HS256, got %s", tk.Method.Alg())
		}
		return []byte("secret-key"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("expected valid token")
	}

	if claims.Issuer != "access-key" {
		t.Errorf("expected issuer access-key, got %s", claims.Issuer)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("expected expiry 30m out, got %v", claims.ExpiresAt.Time)
	}
	if !claims.NotBefore.Time.Equal(now.Add(-5 * time.Second)) {
		t.Errorf("expected not-before 5s in the past, got %v", claims.NotBefore.Time)
	}
}

func TestSignToken_WrongKeyFailsVerification(t *testing.T) {
	tokenString, err := signToken("access-key", "secret-key", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = jwt.Parse(tokenString, func(tk *jwt.Token) (any, error) {
		return []byte("other-key"), nil
	})
	if err == nil {
		t.Error("expected verification error with wrong key")
	}
}
