package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"moracollect-api/internal/model"
	"moracollect-api/internal/service"
)

// RecordsHandler handles the recording upload, registration and listing routes.
type RecordsHandler struct {
	service service.RecordService
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(svc service.RecordService) *RecordsHandler {
	return &RecordsHandler{service: svc}
}

// UploadURLRequest asks for a signed upload URL.
//
// swagger:model UploadURLRequest
type UploadURLRequest struct {
	// Optional client generated UUIDv4; the server picks one when empty.
	RecordID    string `json:"record_id,omitempty"`
	Ext         string `json:"ext"`
	ContentType string `json:"content_type,omitempty"`
}

// UploadURLResponse carries a signed PUT URL.
//
// swagger:model UploadURLResponse
type UploadURLResponse struct {
	OK              bool              `json:"ok"`
	RecordID        string            `json:"record_id"`
	RawPath         string            `json:"raw_path"`
	UploadURL       string            `json:"upload_url"`
	Method          string            `json:"method"`
	RequiredHeaders map[string]string `json:"required_headers"`
	ExpiresAt       string            `json:"expires_at"`
	MaxBytes        int64             `json:"max_bytes"`
}

// RegisterRequest registers an uploaded recording.
//
// swagger:model RegisterRequest
type RegisterRequest struct {
	RecordID      string `json:"record_id"`
	RawPath       string `json:"raw_path"`
	ScriptID      string `json:"script_id"`
	PromptID      string `json:"prompt_id"`
	ClientMeta    any    `json:"client_meta,omitempty"`
	RecordingMeta any    `json:"recording_meta,omitempty"`
}

// RegisterResponse is the outcome of a registration.
//
// swagger:model RegisterResponse
type RegisterResponse struct {
	OK                bool   `json:"ok"`
	RecordID          string `json:"record_id"`
	Status            string `json:"status"`
	AlreadyRegistered bool   `json:"already_registered"`
}

// RecordResponse is one record as returned to its owner.
//
// swagger:model RecordResponse
type RecordResponse struct {
	RecordID      string         `json:"record_id"`
	ScriptID      string         `json:"script_id"`
	PromptID      string         `json:"prompt_id"`
	PromptText    string         `json:"prompt_text"`
	RawPath       string         `json:"raw_path"`
	ProcessedPath *string        `json:"processed_path"`
	Status        string         `json:"status"`
	ClientMeta    map[string]any `json:"client_meta"`
	RecordingMeta map[string]any `json:"recording_meta"`
	CreatedAt     *string        `json:"created_at"`
	UpdatedAt     *string        `json:"updated_at"`
}

// MyRecordsResponse is one page of the caller's records.
//
// swagger:model MyRecordsResponse
type MyRecordsResponse struct {
	OK         bool             `json:"ok"`
	Records    []RecordResponse `json:"records"`
	NextCursor *string          `json:"next_cursor"`
}

// DeleteRecordResponse is the outcome of a delete.
//
// swagger:model DeleteRecordResponse
type DeleteRecordResponse struct {
	OK             bool   `json:"ok"`
	RecordID       string `json:"record_id"`
	Deleted        bool   `json:"deleted"`
	StorageDeleted bool   `json:"storage_deleted"`
}

// UploadURL issues a signed upload URL for a new recording.
//
// swagger:route POST /v1/upload-url records uploadURL
func (h *RecordsHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req UploadURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		invalidBody(w, ctx, err)
		return
	}

	issued, err := h.service.IssueUploadURL(ctx, id.UID, service.UploadRequest{
		RecordID:    req.RecordID,
		Ext:         req.Ext,
		ContentType: req.ContentType,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, UploadURLResponse{
		OK:              true,
		RecordID:        issued.RecordID,
		RawPath:         issued.Path,
		UploadURL:       issued.UploadURL,
		Method:          http.MethodPut,
		RequiredHeaders: map[string]string{"Content-Type": issued.ContentType},
		ExpiresAt:       issued.ExpiresAt.UTC().Format(time.RFC3339),
		MaxBytes:        issued.MaxBytes,
	})
}

// Register records an uploaded object against a prompt.
//
// swagger:route POST /v1/register records register
//
// Responses: 200 registered or already registered, 400 invalid input,
// 404 unknown script, prompt or object, 409 conflicting registration.
func (h *RecordsHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		invalidBody(w, ctx, err)
		return
	}

	res, err := h.service.Register(ctx, id.UID, service.RegisterRequest{
		RecordID:      req.RecordID,
		RawPath:       req.RawPath,
		ScriptID:      req.ScriptID,
		PromptID:      req.PromptID,
		ClientMeta:    model.DecodeClientMeta(req.ClientMeta),
		RecordingMeta: model.DecodeRecordingMeta(req.RecordingMeta),
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, RegisterResponse{
		OK:                true,
		RecordID:          res.RecordID,
		Status:            res.Status,
		AlreadyRegistered: res.AlreadyRegistered,
	})
}

// ListMine returns the caller's records, newest first.
//
// swagger:route GET /v1/my-records records listMyRecords
func (h *RecordsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	page, err := h.service.ListMine(ctx, id.UID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	records := make([]RecordResponse, 0, len(page.Records))
	for _, rec := range page.Records {
		records = append(records, toRecordResponse(rec))
	}
	writeJSON(ctx, w, http.StatusOK, MyRecordsResponse{
		OK:         true,
		Records:    records,
		NextCursor: optional(page.NextCursor),
	})
}

// DeleteMine deletes one of the caller's records.
//
// swagger:route DELETE /v1/my-records/{record_id} records deleteMyRecord
func (h *RecordsHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := caller(w, r)
	if !ok {
		return
	}

	res, err := h.service.DeleteMine(ctx, id.UID, chi.URLParam(r, "recordID"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, DeleteRecordResponse{
		OK:             true,
		RecordID:       res.RecordID,
		Deleted:        true,
		StorageDeleted: res.StorageDeleted,
	})
}

func toRecordResponse(rec model.Record) RecordResponse {
	return RecordResponse{
		RecordID:      rec.RecordID,
		ScriptID:      rec.ScriptID,
		PromptID:      rec.PromptID,
		PromptText:    rec.PromptText,
		RawPath:       rec.RawPath,
		ProcessedPath: rec.ProcessedPath,
		Status:        rec.Status,
		ClientMeta:    rec.ClientMeta.Doc(),
		RecordingMeta: rec.RecordingMeta.Doc(),
		CreatedAt:     timestamp(rec.CreatedAt),
		UpdatedAt:     timestamp(rec.UpdatedAt),
	}
}
