package handlers

import (
	"errors"
	"net/http"

	"github.com/nimbusgpu/askbot/internal/api/response"
	"github.com/nimbusgpu/askbot/internal/service"
)

// RebuildService submits corpus rebuild jobs and reports their status.
type RebuildService interface {
	Submit() service.RebuildJob
	Status(id string) (service.RebuildJob, error)
}

// RebuildHandler handles corpus rebuild requests from the dashboard.
type RebuildHandler struct {
	service RebuildService
}

// NewRebuildHandler creates a new rebuild handler.
func NewRebuildHandler(service RebuildService) *RebuildHandler {
	return &RebuildHandler{service: service}
}

// Rebuild handles POST /api/dashboard/rebuild_rag
// @Summary Start a corpus rebuild
// @Description Launches the rebuild job in the background and returns its job snapshot
// @Tags Dashboard
// @Produce json
// @Success 202 {object} service.RebuildJob
// @Security BearerAuth
// @Router /api/dashboard/rebuild_rag [post]
func (h *RebuildHandler) Rebuild(w http.ResponseWriter, _ *http.Request) {
	job := h.service.Submit()

	response.RespondJSON(w, http.StatusAccepted, job)
}

// JobStatus handles GET /api/dashboard/rebuild_jobs/{id}
// @Summary Rebuild job status
// @Tags Dashboard
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} service.RebuildJob
// @Failure 404 {object} response.ProblemDetails
// @Security BearerAuth
// @Router /api/dashboard/rebuild_jobs/{id} [get]
func (h *RebuildHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		response.RespondBadRequest(w, "Job ID is required")
		return
	}

	job, err := h.service.Status(id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.RespondNotFound(w, "Rebuild job not found")
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, job)
}
