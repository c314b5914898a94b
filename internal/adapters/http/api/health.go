package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

// Pinger checks backing store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the operational endpoints.
type HealthHandler struct {
	pinger Pinger
	logger logger.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(p Pinger) *HealthHandler {
	return &HealthHandler{pinger: p, logger: logger.Named("health")}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

// Register attaches /healthz and /metrics to r.
func (h *HealthHandler) Register(r *mux.Router) {
	r.Handle("/healthz", MetricsMiddleware(NoStore(h.HandleHealth), "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", h.HandleMetrics()).Methods(http.MethodGet)
}

// HandleHealth handles GET /healthz requests: 200 when the store answers a
// ping, 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn(ctx, "health check failed", logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: "down", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "up"})
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
