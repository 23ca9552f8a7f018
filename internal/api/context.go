package api

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	userKey ctxKey = iota
	loggerKey
)

// UserIDFromContext returns the authenticated user, or "" if the request
// did not pass through the auth middleware.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey).(string)

	return userID
}

// withUser returns a context carrying userID and a logger tagged with it.
func withUser(ctx context.Context, userID string, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, userKey, userID)

	return context.WithValue(ctx, loggerKey, logger.With("user", userID))
}

// loggerFrom returns the request logger, falling back to fallback.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}

	return fallback
}
