package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nimbusgpu/askbot/internal/api/response"
	"github.com/nimbusgpu/askbot/internal/apperrors"
	"github.com/nimbusgpu/askbot/internal/models"
)

// DashboardService defines the interface for the operator dashboard business logic.
type DashboardService interface {
	DailyStats(ctx context.Context) (map[string]int, error)
	CategoryStats(ctx context.Context) ([]models.CategoryCount, error)
	MissedQuestions(ctx context.Context) ([]models.ChatLog, error)
	AllQuestions(ctx context.Context) ([]models.ChatLog, error)
	UpdateAnswer(ctx context.Context, req models.UpdateAnswerRequest) error
	QALibrary(ctx context.Context) ([]models.SourceRecord, error)
}

// DashboardHandler handles HTTP requests for the operator dashboard
type DashboardHandler struct {
	service DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// DailyStats handles GET /api/dashboard/daily_stats
// @Summary Questions per day
// @Tags Dashboard
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /api/dashboard/daily_stats [get]
func (h *DashboardHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DailyStats(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}

// CategoryStats handles GET /api/dashboard/category_stats
// @Summary Questions per category
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.CategoryCount
// @Security BearerAuth
// @Router /api/dashboard/category_stats [get]
func (h *DashboardHandler) CategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CategoryStats(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}

// MissedQuestions handles GET /api/dashboard/missed_questions
// @Summary Recent unanswered questions
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.ChatLog
// @Security BearerAuth
// @Router /api/dashboard/missed_questions [get]
func (h *DashboardHandler) MissedQuestions(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.MissedQuestions(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, logs)
}

// AllQuestions handles GET /api/dashboard/all_questions
// @Summary Full chat history, newest first
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.ChatLog
// @Security BearerAuth
// @Router /api/dashboard/all_questions [get]
func (h *DashboardHandler) AllQuestions(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.AllQuestions(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, logs)
}

// UpdateAnswer handles POST /api/dashboard/update_answer
// @Summary Manually correct a missed question
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param request body models.UpdateAnswerRequest true "Correction"
// @Success 200 {object} map[string]string
// @Failure 400 {object} response.ProblemDetails
// @Failure 404 {object} response.ProblemDetails
// @Security BearerAuth
// @Router /api/dashboard/update_answer [post]
func (h *DashboardHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if req.LogID <= 0 {
		response.RespondBadRequest(w, "log_id is required")
		return
	}

	if strings.TrimSpace(req.Answer) == "" {
		response.RespondBadRequest(w, "answer is required and must be non-empty")
		return
	}

	if err := h.service.UpdateAnswer(r.Context(), req); err != nil {
		var notFound *apperrors.NotFoundError
		if errors.As(err, &notFound) {
			response.RespondNotFound(w, notFound.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// QALibrary handles GET /api/dashboard/qa_library
// @Summary The authoritative Q&A source records
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.SourceRecord
// @Security BearerAuth
// @Router /api/dashboard/qa_library [get]
func (h *DashboardHandler) QALibrary(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.QALibrary(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, records)
}
