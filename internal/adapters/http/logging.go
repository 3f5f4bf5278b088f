package http

import (
	"context"
	"log/slog"
)

const serviceName = "Identity-Service"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logByStatus picks the level from the response status: 5xx error, 4xx warn, else info.
func logByStatus(ctx context.Context, statusCode int, msg string, fields ...any) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	httpLogger().Log(ctx, level, msg, fields...)
}

func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	logByStatus(ctx, statusCode, "http operation failed", fields...)
}
