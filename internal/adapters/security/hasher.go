package security

import (
	"fmt"
	"strings"

	"github.com/viralforge/identity-service/internal/domain"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordHasher hashes new passwords with the configured algorithm and verifies
// digests of either supported algorithm, selected by the digest prefix.
type PasswordHasher struct {
	algorithm string
	bcrypt    *BcryptHasher
	argon2    *Argon2Hasher
}

func NewPasswordHasher(algorithm string, bcryptCost int, argonParams Argon2Params) (*PasswordHasher, error) {
	argonHasher, err := NewArgon2Hasher(argonParams)
	if err != nil {
		return nil, err
	}
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	switch algorithm {
	case "":
		algorithm = AlgorithmBcrypt
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", algorithm)
	}
	return &PasswordHasher{
		algorithm: algorithm,
		bcrypt:    NewBcryptHasher(bcryptCost),
		argon2:    argonHasher,
	}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

func (h *PasswordHasher) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$"+argon2AlgorithmID+"$"):
		return h.argon2.Verify(password, digest)
	case strings.HasPrefix(digest, "$2"):
		return h.bcrypt.Verify(password, digest)
	default:
		return false, fmt.Errorf("%w: unrecognized digest prefix", domain.ErrMalformedDigest)
	}
}
