// Package contextutil carries the request-scoped logger and the verified
// caller through context.Context.
package contextutil

import (
	"context"
	"log/slog"

	"moracollect-api/internal/identity"
)

type (
	loggerKey   struct{}
	identityKey struct{}
)

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the request logger, or slog.Default() outside a
// request (jobs, tests, startup).
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithIdentity stores the verified caller; the auth middleware also tags the
// request logger with the uid.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the verified caller, if any.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity.Identity)
	return id, ok
}
