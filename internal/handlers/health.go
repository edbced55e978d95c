package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/admingate/internal/store"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
)

// HealthHandler reports liveness and the health of the session store backend
type HealthHandler struct {
	backend string
	checker store.HealthChecker // nil for the in-memory store
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(backend string, checker store.HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backend: backend, checker: checker, logger: logger}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.checker.Ping(ctx); err != nil {
			h.logger.Warn("session store health check failed", "error", err, "store", h.backend)
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Store: h.backend})
			return
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: h.backend})
}
