package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentorship_api/internal/controller/respond"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /health.
//
// 200 {"status":"ok","database":"connected"} or
// 503 {"status":"error","database":"disconnected"}.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Health check: database ping failed", zap.Error(err))
		respond.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Database: "disconnected"})
		return
	}

	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}
