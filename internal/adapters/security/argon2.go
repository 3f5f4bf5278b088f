package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/viralforge/identity-service/internal/domain"
	"golang.org/x/crypto/argon2"
)

const argon2AlgorithmID = "argon2id"

type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher encodes digests in PHC string format:
// $argon2id$v=19$m=<kib>,t=<iterations>,p=<lanes>$<salt>$<hash>
type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	switch {
	case params.Memory < 8*1024:
		return nil, errors.New("argon2 memory must be at least 8192 KiB")
	case params.Time < 1:
		return nil, errors.New("argon2 time must be at least 1")
	case params.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be at least 1")
	case params.SaltLength < 16:
		return nil, errors.New("argon2 salt length must be at least 16")
	case params.KeyLength < 16:
		return nil, errors.New("argon2 key length must be at least 16")
	}
	return &Argon2Hasher{params: params}, nil
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2AlgorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(password, digest string) (bool, error) {
	parsed, err := parseArgon2Digest(digest)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrMalformedDigest, err)
	}
	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Time, parsed.params.Memory, parsed.params.Parallelism, parsed.params.KeyLength)
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

type argon2Digest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2Digest(digest string) (argon2Digest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return argon2Digest{}, errors.New("invalid PHC format")
	}
	if parts[1] != argon2AlgorithmID {
		return argon2Digest{}, fmt.Errorf("unsupported algorithm %q", parts[1])
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return argon2Digest{}, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return argon2Digest{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var out argon2Digest
	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return argon2Digest{}, fmt.Errorf("invalid argon2 parameter %q", kv)
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			return argon2Digest{}, fmt.Errorf("invalid argon2 parameter %q", kv)
		}
		switch name {
		case "m":
			out.params.Memory = uint32(n)
		case "t":
			out.params.Time = uint32(n)
		case "p":
			if n > 255 {
				return argon2Digest{}, fmt.Errorf("invalid argon2 parameter %q", kv)
			}
			out.params.Parallelism = uint8(n)
		default:
			return argon2Digest{}, fmt.Errorf("unknown argon2 parameter %q", name)
		}
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return argon2Digest{}, errors.New("missing argon2 parameters")
	}

	out.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(out.salt) == 0 {
		return argon2Digest{}, errors.New("invalid salt encoding")
	}
	out.key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(out.key) == 0 {
		return argon2Digest{}, errors.New("invalid hash encoding")
	}
	out.params.KeyLength = uint32(len(out.key))
	return out, nil
}
