package api

import (
	"net/http"

	"github.com/okian/clickrank/pkg/logger"
)

// VisitorHandler serves the visitor routes.
type VisitorHandler struct {
	deps   VisitorDependencies
	logger logger.Logger
}

// NewVisitorHandler creates a new visitor handler.
func NewVisitorHandler(deps VisitorDependencies, l logger.Logger) *VisitorHandler {
	return &VisitorHandler{deps: deps, logger: l}
}

func (h *VisitorHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(h.logger, w, r, err)
}

type okResponse struct {
	OK bool `json:"ok"`
}

type pingResponse struct {
	OK   bool   `json:"ok"`
	Pong string `json:"pong"`
}

type nameResponse struct {
	OK   bool   `json:"ok,omitempty"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// HandleRoot handles GET / requests.
func (h *VisitorHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandlePing handles GET /ping requests with a store round trip.
func (h *VisitorHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Ping(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{OK: true, Pong: "PONG"})
}

// HandleMe handles GET /me requests.
func (h *VisitorHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Profile(r.Context(), ClientID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleGetName handles GET /name requests.
func (h *VisitorHandler) HandleGetName(w http.ResponseWriter, r *http.Request) {
	id := ClientID(r.Context())
	name, err := h.deps.Name(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nameResponse{ID: id, Name: name})
}

// HandleSetName handles POST /name requests.
func (h *VisitorHandler) HandleSetName(w http.ResponseWriter, r *http.Request) {
	id := ClientID(r.Context())
	body := readPayload(r)
	name, err := h.deps.SetName(r.Context(), id, body.text("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nameResponse{OK: true, ID: id, Name: name})
}

// HandleCount handles GET /count requests.
func (h *VisitorHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Count(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// HandleIncrement handles POST /increment requests.
func (h *VisitorHandler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Increment(r.Context(), ClientID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}
