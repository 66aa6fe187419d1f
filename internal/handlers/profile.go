package handlers

import (
	"net/http"
	"time"

	"moracollect-api/internal/service"
)

// ProfileHandler serves the caller's profile and avatar routes.
type ProfileHandler struct {
	service service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// ProfileBody is the public view of a user document.
//
// swagger:model ProfileBody
type ProfileBody struct {
	UID               string  `json:"uid"`
	DisplayName       string  `json:"display_name"`
	Email             *string `json:"email"`
	Role              string  `json:"role"`
	ContributionCount int64   `json:"contribution_count"`
	IsHidden          bool    `json:"is_hidden"`
	AvatarPath        *string `json:"avatar_path"`
	AvatarURL         *string `json:"avatar_url"`
	AvatarUpdatedAt   *string `json:"avatar_updated_at"`
	CreatedAt         *string `json:"created_at"`
	UpdatedAt         *string `json:"updated_at"`
}

// ProfileResponse wraps a profile.
//
// swagger:model ProfileResponse
type ProfileResponse struct {
	OK      bool        `json:"ok"`
	Profile ProfileBody `json:"profile"`
}

// ProfileUpdateRequest changes profile fields. Omitted fields are kept.
//
// swagger:model ProfileUpdateRequest
type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	IsHidden    *bool   `json:"is_hidden,omitempty"`
}

// AvatarUploadResponse carries a signed PUT URL for an avatar.
//
// swagger:model AvatarUploadResponse
type AvatarUploadResponse struct {
	OK              bool              `json:"ok"`
	AvatarID        string            `json:"avatar_id"`
	AvatarPath      string            `json:"avatar_path"`
	UploadURL       string            `json:"upload_url"`
	Method          string            `json:"method"`
	RequiredHeaders map[string]string `json:"required_headers"`
	ExpiresAt       string            `json:"expires_at"`
	MaxBytes        int64             `json:"max_bytes"`
}

// AvatarCommitRequest points the profile at an uploaded avatar.
//
// swagger:model AvatarCommitRequest
type AvatarCommitRequest struct {
	AvatarID   string `json:"avatar_id"`
	AvatarPath string `json:"avatar_path"`
}

// Get returns the caller's profile, creating it on first use.
//
// swagger:route GET /v1/profile profile getProfile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(ctx, id.UID, id.Email)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toProfileResponse(p))
}

// Update changes the display name or visibility.
//
// swagger:route POST /v1/profile profile updateProfile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req ProfileUpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		invalidBody(w, ctx, err)
		return
	}

	p, err := h.service.Update(ctx, id.UID, id.Email, service.ProfileUpdate{
		DisplayName: req.DisplayName,
		IsHidden:    req.IsHidden,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toProfileResponse(p))
}

// AvatarUploadURL issues a signed upload URL for a new avatar.
//
// swagger:route POST /v1/profile/avatar/upload-url profile avatarUploadURL
func (h *ProfileHandler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	up, err := h.service.IssueAvatarUpload(ctx, id.UID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, AvatarUploadResponse{
		OK:              true,
		AvatarID:        up.AvatarID,
		AvatarPath:      up.Path,
		UploadURL:       up.UploadURL,
		Method:          http.MethodPut,
		RequiredHeaders: map[string]string{"Content-Type": up.ContentType},
		ExpiresAt:       up.ExpiresAt.UTC().Format(time.RFC3339),
		MaxBytes:        up.MaxBytes,
	})
}

// CommitAvatar points the profile at an uploaded avatar.
//
// swagger:route POST /v1/profile/avatar profile commitAvatar
func (h *ProfileHandler) CommitAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req AvatarCommitRequest
	if err := decodeBody(w, r, &req); err != nil {
		invalidBody(w, ctx, err)
		return
	}

	p, err := h.service.CommitAvatar(ctx, id.UID, id.Email, req.AvatarID, req.AvatarPath)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toProfileResponse(p))
}

func toProfileResponse(p service.Profile) ProfileResponse {
	u := p.User
	return ProfileResponse{
		OK: true,
		Profile: ProfileBody{
			UID:               u.UID,
			DisplayName:       u.NameOrUID(),
			Email:             optional(u.Email),
			Role:              u.Role,
			ContributionCount: u.ContributionCount,
			IsHidden:          u.IsHidden,
			AvatarPath:        u.AvatarPath,
			AvatarURL:         optional(p.AvatarURL),
			AvatarUpdatedAt:   timestamp(u.AvatarUpdatedAt),
			CreatedAt:         timestamp(u.CreatedAt),
			UpdatedAt:         timestamp(u.UpdatedAt),
		},
	}
}
