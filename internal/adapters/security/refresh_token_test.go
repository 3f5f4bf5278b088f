package security

import (
	"encoding/base64"
	"errors"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestRefreshTokenGeneratorProducesDistinctTokens(t *testing.T) {
	t.Parallel()

	g := NewRefreshTokenGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := g.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token is not url-safe base64: %v", err)
		}
		if len(raw) != refreshTokenBytes {
			t.Fatalf("expected %d random bytes, got %d", refreshTokenBytes, len(raw))
		}
		if seen[token] {
			t.Fatalf("duplicate refresh token generated")
		}
		seen[token] = true
	}
}

func TestRefreshTokenGeneratorFailsWithoutEntropy(t *testing.T) {
	t.Parallel()

	g := &RefreshTokenGenerator{source: failingReader{}}
	if token, err := g.Generate(); err == nil || token != "" {
		t.Fatalf("expected generation failure, got token=%q err=%v", token, err)
	}
}
