package ports

import (
	"time"

	"github.com/google/uuid"
)

// PasswordHasher produces salted adaptive digests.
// Verify returns (false, nil) on mismatch and domain.ErrMalformedDigest when digest cannot be parsed.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

type AccessClaims struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Issuer    string    `json:"issuer"`
	Audience  string    `json:"audience"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenSigner interface {
	Sign(claims AccessClaims) (string, error)
	ParseAndValidate(token string) (AccessClaims, error)
}

type RefreshTokenGenerator interface {
	Generate() (string, error)
}
