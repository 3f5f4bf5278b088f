package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const refreshTokenBytes = 64

// RefreshTokenGenerator produces opaque refresh tokens from crypto/rand,
// encoded as unpadded URL-safe base64.
type RefreshTokenGenerator struct {
	source io.Reader
}

func NewRefreshTokenGenerator() *RefreshTokenGenerator {
	return &RefreshTokenGenerator{source: rand.Reader}
}

func (g *RefreshTokenGenerator) Generate() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
