package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/meetsync/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Default(logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var bErr *BackendError
	if errors.As(err, &bErr) {
		return "backend"
	}

	return "unexpected"
}
