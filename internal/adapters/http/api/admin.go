package api

import (
	"net/http"
	"strings"

	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/leaderboard"
	"github.com/okian/clickrank/internal/domain/types"
	"github.com/okian/clickrank/internal/domain/users"
	"github.com/okian/clickrank/pkg/logger"
)

// Admin validation messages owned by the HTTP layer.
const (
	MsgMissingAdminFlag = "Missing admin flag (true/false)"
	MsgMissingConfirm   = `Missing confirm. Send { "confirm": "RESET" }`
	MsgInvalidScope     = "Invalid scope"

	resetConfirmation = "RESET"
)

// AdminHandler serves the /admin routes. Callers reach it only after the
// admin gate.
type AdminHandler struct {
	deps   AdminDependencies
	logger logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, l logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: l}
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(h.logger, w, r, err)
}

type setCountResponse struct {
	OK    bool  `json:"ok"`
	Value int64 `json:"value"`
}

type addCountResponse struct {
	OK    bool  `json:"ok"`
	Count int64 `json:"count"`
}

type userDeltaResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

type banResponse struct {
	OK     bool   `json:"ok"`
	ID     string `json:"id"`
	Banned bool   `json:"banned"`
	Purged bool   `json:"purged"`
}

type adminResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id"`
	Admin bool   `json:"admin"`
}

type resetResponse struct {
	OK    bool             `json:"ok"`
	Scope types.ResetScope `json:"scope"`
}

// HandleSetCount handles POST /admin/set-count requests.
func (h *AdminHandler) HandleSetCount(w http.ResponseWriter, r *http.Request) {
	body := readPayload(r)
	n, err := h.deps.AdminSet(r.Context(), body.number("value"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setCountResponse{OK: true, Value: n})
}

// HandleAddCount handles POST /admin/add-count requests.
func (h *AdminHandler) HandleAddCount(w http.ResponseWriter, r *http.Request) {
	body := readPayload(r)
	n, err := h.deps.AdminAdd(r.Context(), body.number("delta"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addCountResponse{OK: true, Count: n})
}

// HandleUserDelta handles POST /admin/user-delta requests.
func (h *AdminHandler) HandleUserDelta(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_delta"
	body := readPayload(r)
	id := body.id("id")
	if id == "" {
		h.fail(w, r, fault.Validation(op, leaderboard.MsgMissingID))
		return
	}
	n, err := h.deps.UserDelta(r.Context(), id, body.number("delta"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userDeltaResponse{OK: true, ID: id, Count: n})
}

// HandleBan handles POST /admin/ban requests.
func (h *AdminHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	const op = "api.ban"
	body := readPayload(r)
	id := body.id("id")
	if id == "" {
		h.fail(w, r, fault.Validation(op, leaderboard.MsgMissingID))
		return
	}
	banned := body.truthy("banned")
	purged, err := h.deps.Ban(r.Context(), id, banned, body.truthy("purge"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, banResponse{OK: true, ID: id, Banned: banned, Purged: purged})
}

// HandleSetAdmin handles POST /admin/admin requests.
func (h *AdminHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_admin"
	body := readPayload(r)
	id := body.id("id")
	if id == "" {
		h.fail(w, r, fault.Validation(op, leaderboard.MsgMissingID))
		return
	}
	if !body.has("admin") {
		h.fail(w, r, fault.Validation(op, MsgMissingAdminFlag))
		return
	}
	admin := users.IsTruthy(body.text("admin"))
	if err := h.deps.SetAdmin(r.Context(), id, admin); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminResponse{OK: true, ID: id, Admin: admin})
}

// HandleReset handles POST /admin/reset requests. The confirmation is
// checked before the scope.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	body := readPayload(r)
	if body.text("confirm") != resetConfirmation {
		h.fail(w, r, fault.Validation(op, MsgMissingConfirm))
		return
	}
	scope := types.ResetAll
	if s := body.text("scope"); s != "" {
		scope = types.ResetScope(strings.ToLower(s))
	}
	if !scope.Valid() {
		h.fail(w, r, fault.Validation(op, MsgInvalidScope))
		return
	}
	if err := h.deps.Reset(r.Context(), scope); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{OK: true, Scope: scope})
}
