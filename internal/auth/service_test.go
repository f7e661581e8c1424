package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestService(ttl time.Duration) *Service {
	return NewService(nil, NewDefaultLimiter(), Config{
		TokenSecret: "0123456789012345678901234567890123456789",
		TokenTTL:    ttl,
	}, nil)
}

func TestMintVerifyToken_RoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.MintToken(42)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	userID, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if userID != 42 {
		t.Fatalf("userID = %d, want 42", userID)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, err := svc.MintToken(7)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	_, err = svc.VerifyToken(token)
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != "expired_token" {
		t.Fatalf("expected expired_token error, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	svc := newTestService(time.Hour)
	token, err := svc.MintToken(7)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	other := newTestService(time.Hour)
	other.secret = []byte("different-signing-secret-thats-long-enough")

	_, err = other.VerifyToken(token)
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != "invalid_token" {
		t.Fatalf("expected invalid_token error, got %v", err)
	}
}

func TestVerifyToken_Malformed(t *testing.T) {
	svc := newTestService(time.Hour)
	_, err := svc.VerifyToken("not.a.jwt")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != "invalid_token" {
		t.Fatalf("expected invalid_token error, got %v", err)
	}
}

func TestVerifyToken_RejectsUnsignedAlgorithm(t *testing.T) {
	svc := newTestService(time.Hour)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 1,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none-alg token: %v", err)
	}

	_, err = svc.VerifyToken(signed)
	if err == nil {
		t.Fatal("expected none-algorithm token to be rejected")
	}
}
