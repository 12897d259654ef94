package handlers

import (
	"net/http"

	"github.com/nimbusgpu/askbot/internal/api/response"
)

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
