package http

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_token_verifier.go -package=mocks -mock_names=TokenVerifier=MockTokenVerifier moracollect-api/internal/http TokenVerifier

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/identity"
)

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

// Auth rejects requests without a valid Firebase ID token and stores the
// verified identity in the request context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := contextutil.LoggerFromContext(ctx)

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				unauthorized(w, "Missing Authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				unauthorized(w, "Invalid Authorization header format")
				return
			}

			id, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "token verification failed", "error", err)
				unauthorized(w, "Invalid authentication token")
				return
			}

			ctx = contextutil.WithIdentity(ctx, id)
			ctx = contextutil.WithLogger(ctx, logger.With("uid", id.UID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme is
// case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "detail": detail})
}
