package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/chain"
)

// ChainHealth reports settlement layer connectivity.
type ChainHealth interface {
	Health(ctx context.Context) chain.Health
}

// HealthHandler serves liveness and settlement health endpoints.
type HealthHandler struct {
	gateway   ChainHealth
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(gateway ChainHealth) *HealthHandler {
	return &HealthHandler{
		gateway:   gateway,
		startedAt: time.Now().UTC(),
	}
}

// HealthCheck reports process liveness.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// ChainHealth reports the settlement gateway's view of the chain.
// GET /api/chain/health
func (h *HealthHandler) ChainHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, h.gateway.Health(ctx))
}
