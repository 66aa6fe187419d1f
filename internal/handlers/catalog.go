package handlers

import (
	"net/http"

	"moracollect-api/internal/model"
	"moracollect-api/internal/service"
)

// CatalogHandler serves the script and prompt catalog.
type CatalogHandler struct {
	service service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// ScriptResponse is one active script with its counters.
//
// swagger:model ScriptResponse
type ScriptResponse struct {
	ScriptID       string `json:"script_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Order          int64  `json:"order"`
	PromptCount    int64  `json:"prompt_count"`
	TotalRecords   int64  `json:"total_records"`
	UniqueSpeakers int64  `json:"unique_speakers"`
}

// ScriptsResponse lists active scripts.
//
// swagger:model ScriptsResponse
type ScriptsResponse struct {
	OK      bool             `json:"ok"`
	Source  string           `json:"source"`
	Scripts []ScriptResponse `json:"scripts"`
}

// PromptResponse is one active prompt with its counters.
//
// swagger:model PromptResponse
type PromptResponse struct {
	PromptID       string `json:"prompt_id"`
	Text           string `json:"text"`
	Order          int64  `json:"order"`
	TotalRecords   int64  `json:"total_records"`
	UniqueSpeakers int64  `json:"unique_speakers"`
}

// PromptsResponse lists the active prompts of a script.
//
// swagger:model PromptsResponse
type PromptsResponse struct {
	OK       bool             `json:"ok"`
	Source   string           `json:"source"`
	ScriptID string           `json:"script_id"`
	Prompts  []PromptResponse `json:"prompts"`
}

// Scripts lists active scripts.
//
// swagger:route GET /v1/scripts catalog listScripts
func (h *CatalogHandler) Scripts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}

	list, err := h.service.ListScripts(ctx)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	scripts := make([]ScriptResponse, 0, len(list.Scripts))
	for _, s := range list.Scripts {
		scripts = append(scripts, toScriptResponse(s))
	}
	writeJSON(ctx, w, http.StatusOK, ScriptsResponse{
		OK:      true,
		Source:  list.Source,
		Scripts: scripts,
	})
}

// Prompts lists the active prompts of one script.
//
// swagger:route GET /v1/prompts catalog listPrompts
func (h *CatalogHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}

	list, err := h.service.ListPrompts(ctx, r.URL.Query().Get("script_id"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	prompts := make([]PromptResponse, 0, len(list.Prompts))
	for _, p := range list.Prompts {
		prompts = append(prompts, PromptResponse{
			PromptID:       p.PromptID,
			Text:           p.Text,
			Order:          p.Order,
			TotalRecords:   p.TotalRecords,
			UniqueSpeakers: p.UniqueSpeakers,
		})
	}
	writeJSON(ctx, w, http.StatusOK, PromptsResponse{
		OK:       true,
		Source:   list.Source,
		ScriptID: list.ScriptID,
		Prompts:  prompts,
	})
}

func toScriptResponse(s model.ScriptEntry) ScriptResponse {
	return ScriptResponse{
		ScriptID:       s.ScriptID,
		Title:          s.Title,
		Description:    s.Description,
		Order:          s.Order,
		PromptCount:    s.PromptCount,
		TotalRecords:   s.TotalRecords,
		UniqueSpeakers: s.UniqueSpeakers,
	}
}
