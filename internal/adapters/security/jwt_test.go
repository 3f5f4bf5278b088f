package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/ports"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testIssuer     = "identity-service"
	testAudience   = "identity-clients"
)

func newTestSigner(t *testing.T) *JWTSigner {
	t.Helper()
	signer, err := NewJWTSigner(testSigningKey, testIssuer, testAudience)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func testClaims(issuedAt time.Time) ports.AccessClaims {
	return ports.AccessClaims{
		AccountID: uuid.New(),
		Name:      "Ada",
		Email:     "ada@x.com",
		Role:      "Admin",
		TokenID:   uuid.NewString(),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(24 * time.Hour),
	}
}

func TestJWTSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	in := testClaims(time.Now().UTC())
	token, err := signer.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	out, err := signer.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.AccountID != in.AccountID || out.Name != in.Name || out.Email != in.Email || out.Role != in.Role {
		t.Fatalf("claims mismatch: got %+v want %+v", out, in)
	}
	if out.Issuer != testIssuer || out.Audience != testAudience {
		t.Fatalf("unexpected issuer/audience: %s %s", out.Issuer, out.Audience)
	}
	if out.TokenID != in.TokenID {
		t.Fatalf("unexpected token id: %s", out.TokenID)
	}
	if got := out.ExpiresAt.Sub(out.IssuedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h lifetime, got %s", got)
	}
}

func TestJWTSignerRejectsTamperedTokens(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	now := time.Now().UTC()

	otherKey, err := NewJWTSigner("ffffffffffffffffffffffffffffffff", testIssuer, testAudience)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	otherIssuer, err := NewJWTSigner(testSigningKey, "someone-else", testAudience)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	otherAudience, err := NewJWTSigner(testSigningKey, testIssuer, "other-clients")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	wrongKey, _ := otherKey.Sign(testClaims(now))
	wrongIssuer, _ := otherIssuer.Sign(testClaims(now))
	wrongAudience, _ := otherAudience.Sign(testClaims(now))
	expired, _ := signer.Sign(testClaims(now.Add(-48 * time.Hour)))

	valid, _ := signer.Sign(testClaims(now))
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	cases := map[string]string{
		"wrong key":      wrongKey,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"tampered":       tampered,
		"alg none":       noneToken,
		"garbage":        "not.a.token",
	}
	for name, token := range cases {
		if _, err := signer.ParseAndValidate(token); err == nil {
			t.Fatalf("%s: expected token to be rejected", name)
		}
	}
}

func TestJWTSignerRequiresExpiry(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  uuid.NewString(),
		Issuer:   testIssuer,
		Audience: jwt.ClaimStrings{testAudience},
	}).SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.ParseAndValidate(token); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}

func TestNewJWTSignerValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTSigner("short", testIssuer, testAudience); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
	if _, err := NewJWTSigner(testSigningKey, "", testAudience); err == nil {
		t.Fatalf("expected missing issuer to be rejected")
	}
}
