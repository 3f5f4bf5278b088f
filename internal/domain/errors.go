package domain

import "errors"

var (
	// ErrInvalidInput covers empty or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a unique key (email, role name) is already taken.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when the requested account, role or session does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials signals a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIntegrity marks a dangling reference between stored records.
	// It is logged as a consistency alarm and never detailed to callers.
	ErrIntegrity = errors.New("integrity violation")
	// ErrMalformedDigest is returned by password hashers when a stored digest cannot be parsed.
	ErrMalformedDigest = errors.New("malformed password digest")
	ErrRefreshExpired  = errors.New("refresh session expired")
	ErrInvalidToken    = errors.New("invalid token")
)

// FailureKind classifies a failed workflow result for transports.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureValidation     FailureKind = "validation"
	FailureConflict       FailureKind = "conflict"
	FailureNotFound       FailureKind = "not_found"
	FailureAuthentication FailureKind = "authentication"
	FailureIntegrity      FailureKind = "integrity"
	FailureInternal       FailureKind = "internal"
)

// KindOf maps an error chain onto the failure taxonomy.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidInput):
		return FailureValidation
	case errors.Is(err, ErrConflict):
		return FailureConflict
	case errors.Is(err, ErrIntegrity), errors.Is(err, ErrMalformedDigest):
		return FailureIntegrity
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrRefreshExpired), errors.Is(err, ErrInvalidToken):
		return FailureAuthentication
	default:
		return FailureInternal
	}
}
