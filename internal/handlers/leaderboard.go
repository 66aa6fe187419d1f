package handlers

import (
	"net/http"

	"moracollect-api/internal/service"
)

// LeaderboardHandler serves the contributor ranking.
type LeaderboardHandler struct {
	service service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(svc service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

// LeaderboardEntryResponse is one ranked contributor.
//
// swagger:model LeaderboardEntryResponse
type LeaderboardEntryResponse struct {
	Rank              int     `json:"rank"`
	UID               string  `json:"uid"`
	DisplayName       string  `json:"display_name"`
	ContributionCount int64   `json:"contribution_count"`
	AvatarURL         *string `json:"avatar_url"`
	IsMe              bool    `json:"is_me"`
}

// LeaderboardResponse is the ranking.
//
// swagger:model LeaderboardResponse
type LeaderboardResponse struct {
	OK      bool                       `json:"ok"`
	Limit   int                        `json:"limit"`
	Entries []LeaderboardEntryResponse `json:"entries"`
}

// ServeHTTP returns the top contributors.
//
// swagger:route GET /v1/leaderboard leaderboard getLeaderboard
//
// Contributors with equal counts share a rank. Hidden users and users
// without contributions are omitted.
func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	limit = service.LeaderboardLimit(limit)

	top, err := h.service.Top(ctx, id.UID, limit)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	entries := make([]LeaderboardEntryResponse, 0, len(top))
	for _, e := range top {
		entries = append(entries, LeaderboardEntryResponse{
			Rank:              e.Rank,
			UID:               e.UID,
			DisplayName:       e.DisplayName,
			ContributionCount: e.ContributionCount,
			AvatarURL:         optional(e.AvatarURL),
			IsMe:              e.IsMe,
		})
	}
	writeJSON(ctx, w, http.StatusOK, LeaderboardResponse{
		OK:      true,
		Limit:   limit,
		Entries: entries,
	})
}
