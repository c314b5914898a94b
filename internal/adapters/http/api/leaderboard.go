package api

import (
	"net/http"

	"github.com/okian/clickrank/internal/domain/types"
)

type leadersResponse struct {
	Leaders []types.Leader `json:"leaders"`
}

// HandleLeaderboard handles GET /leaderboard requests.
func (h *VisitorHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.deps.Leaders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if leaders == nil {
		leaders = []types.Leader{}
	}
	writeJSON(w, http.StatusOK, leadersResponse{Leaders: leaders})
}
