package http

import (
	"context"
	"log/slog"

	"github.com/example/meetsync/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Default(logger)
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, fallback, "handler", handlerName, operation, attrs...)
}
