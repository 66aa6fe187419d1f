package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/identity"
	"moracollect-api/internal/service"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// writeJSON writes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		OK:     false,
		Detail: detail,
	})
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	status, detail := http.StatusInternalServerError, "Internal server error"
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		status, detail = http.StatusBadRequest, service.Detail(err)
	case errors.Is(err, service.ErrInvalidInput):
		status, detail = http.StatusBadRequest, detailOr(err, "Invalid input")
	case errors.Is(err, service.ErrNotFound):
		status, detail = http.StatusNotFound, detailOr(err, "Resource not found")
	case errors.Is(err, service.ErrConflict):
		status, detail = http.StatusConflict, detailOr(err, "Conflict")
	case errors.Is(err, service.ErrForbidden):
		status, detail = http.StatusForbidden, detailOr(err, "Forbidden")
	}

	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "service error", "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	writeError(w, status, detail)
}

func detailOr(err error, fallback string) string {
	if d := service.Detail(err); d != "" {
		return d
	}
	return fallback
}

// decodeBody decodes a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// caller returns the authenticated identity, writing a 401 when the request
// did not pass through the auth middleware.
func caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := contextutil.IdentityFromContext(r.Context())
	if !ok || id.UID == "" {
		writeError(w, http.StatusUnauthorized, "Invalid authentication token")
		return identity.Identity{}, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; 0 means absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &service.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

// timestamp formats an optional time for JSON output.
func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func invalidBody(w http.ResponseWriter, ctx context.Context, err error) {
	contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
}
