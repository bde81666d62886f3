package handlers

import (
	"context"
	"net/http"

	pkghttp "github.com/calebmoore/vaultguard/pkg/http"
)

// Pinger checks a backing dependency's liveness
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness/readiness probes
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz reports service health including store connectivity
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		pkghttp.WriteServiceUnavailable(w, "database unavailable")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
