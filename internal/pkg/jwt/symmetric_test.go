package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeUUID struct{}

func (fakeUUID) Generate() string { return "test-token-id" }

func testConfig(clk clocker) Config {
	return Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "otpify",
		Audiences: []string{"otpify-clients"},
		TTL:       15 * time.Minute,
		Clock:     clk,
		UUID:      fakeUUID{},
	}
}

func TestNewHS512RejectsShortSecret(t *testing.T) {
	cfg := testConfig(&fakeClock{now: time.Now()})
	cfg.Secret = []byte("too-short")

	if _, err := NewHS512(cfg); !errors.Is(err, ErrSigningKeyTooShort) {
		t.Fatalf("expected ErrSigningKeyTooShort, got %v", err)
	}
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	s, err := NewHS512(testConfig(&fakeClock{now: time.Now()}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	token, err := s.Generate("a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("expected email claim a@x.com, got %q", claims.Email)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	s, err := NewHS512(testConfig(&fakeClock{now: time.Now()}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	token, err := s.Generate("a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := s.Verify(tampered); err == nil {
		t.Fatal("expected verification of tampered token to fail")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	clk := &fakeClock{now: time.Now().Add(-time.Hour)}
	s, err := NewHS512(testConfig(clk))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	token, err := s.Generate("a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := s.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyMissingEmailClaim(t *testing.T) {
	cfg := testConfig(&fakeClock{now: time.Now()})
	s, err := NewHS512(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now()
	raw, err := libJWT.NewWithClaims(libJWT.SigningMethodHS512, libJWT.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audiences,
		IssuedAt:  libJWT.NewNumericDate(now),
		ExpiresAt: libJWT.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := s.Verify(raw); !errors.Is(err, ErrMissingEmailClaim) {
		t.Fatalf("expected ErrMissingEmailClaim, got %v", err)
	}
}
