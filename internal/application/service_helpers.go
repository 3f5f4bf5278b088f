package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/viralforge/identity-service/internal/domain"
)

// rejection attaches the caller-facing message to an error chain.
type rejection struct {
	message string
	err     error
}

func (r *rejection) Error() string { return r.err.Error() }

func (r *rejection) Unwrap() error { return r.err }

func reject(message string, err error) error {
	return &rejection{message: message, err: err}
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// fail converts err into a failed Result. Nothing past this point sees the error itself.
func (s *Service) fail(ctx context.Context, operation string, err error) Result {
	kind := domain.KindOf(err)
	message := MsgInternalFailure
	var rejected *rejection
	if errors.As(err, &rejected) {
		message = rejected.message
	}

	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"failure_kind", string(kind),
		"error", err.Error(),
	}
	switch kind {
	case domain.FailureIntegrity:
		appLogger().ErrorContext(ctx, "identity consistency alarm", fields...)
	case domain.FailureInternal:
		appLogger().ErrorContext(ctx, "identity operation failed", fields...)
	default:
		appLogger().WarnContext(ctx, "identity operation rejected", fields...)
	}
	s.metrics.ObserveOutcome(operation, string(kind))
	return Result{OK: false, Message: message, Kind: kind}
}

func (s *Service) succeed(ctx context.Context, operation string, fields ...any) {
	fields = append([]any{"operation", operation, "outcome", "success"}, fields...)
	appLogger().InfoContext(ctx, "identity operation completed", fields...)
	s.metrics.ObserveOutcome(operation, "success")
}

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
func normalizeEmail(email string) (string, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return normalized, nil
}

// hashToken stores one-way token fingerprints instead of raw secrets.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
