package handlers

import (
	"net/http"

	"driverlink/internal/logx"
)

// Handlers serves the service-level endpoints that do not belong to a
// particular domain entity.
type Handlers struct {
	Logger logx.Logger
}

// New creates the service-level handler set.
func New(logger logx.Logger) *Handlers {
	return &Handlers{Logger: logger}
}

// Ping answers GET /ping with {"message":"pong"}.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead answers HEAD /healthcheck with 204, no body.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// NotFound keeps unknown routes on the JSON error contract.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusNotFound, "route not found")
}
