package contextutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"moracollect-api/internal/identity"
)

func TestLoggerFromContext(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Error("LoggerFromContext() without logger should return the default logger")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Error("LoggerFromContext() did not return the stored logger")
	}

	ctx = WithLogger(context.Background(), nil)
	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("LoggerFromContext() with a nil logger should return the default logger")
	}

	type otherKey string
	ctx = context.WithValue(context.Background(), otherKey("logger"), logger)
	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("LoggerFromContext() should ignore values stored under other keys")
	}
}

func TestIdentityFromContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("IdentityFromContext() on empty context reported ok")
	}

	want := identity.Identity{UID: "u1", Email: "u1@example.com", EmailVerified: true}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), want))
	if !ok || got != want {
		t.Errorf("IdentityFromContext() = %+v, %v, want %+v", got, ok, want)
	}
}
