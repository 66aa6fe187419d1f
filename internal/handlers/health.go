package handlers

import (
	"net/http"
)

// HealthHandler serves liveness and authenticated ping checks.
type HealthHandler struct {
	projectID string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(projectID string) *HealthHandler {
	return &HealthHandler{projectID: projectID}
}

// HealthResponse represents the liveness response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	OK bool `json:"ok"`
}

// PingResponse echoes the verified caller.
//
// swagger:model PingResponse
type PingResponse struct {
	OK        bool    `json:"ok"`
	UID       string  `json:"uid"`
	Email     *string `json:"email"`
	ProjectID string  `json:"project_id"`
}

// Healthz reports that the process is serving.
//
// swagger:route GET /healthz healthCheck
//
// Liveness check. Does not touch any dependency.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, HealthResponse{OK: true})
}

// Ping returns the authenticated caller.
//
// swagger:route GET /v1/ping ping
//
// Echoes the uid and email of the verified ID token.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, PingResponse{
		OK:        true,
		UID:       id.UID,
		Email:     optional(id.Email),
		ProjectID: h.projectID,
	})
}
