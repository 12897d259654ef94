package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nimbusgpu/askbot/internal/api/response"
	"github.com/nimbusgpu/askbot/internal/models"
	"github.com/nimbusgpu/askbot/internal/service"
)

// AnswerService resolves one user question into an answer.
type AnswerService interface {
	Answer(ctx context.Context, question string) (models.AnswerResult, error)
}

// ChatLogsWriter appends one interaction to the chat history.
type ChatLogsWriter interface {
	Insert(ctx context.Context, question, answer, category string, answered bool) (int64, error)
}

// ChatHandler handles end-user chat requests.
type ChatHandler struct {
	answerService AnswerService
	chatLogs      ChatLogsWriter
	logger        *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(answerService AnswerService, chatLogs ChatLogsWriter, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatHandler{answerService: answerService, chatLogs: chatLogs, logger: logger}
}

// Chat handles POST /api/chat
// @Summary Answer a user question
// @Description Runs retrieval-augmented generation over the Q&A corpus and logs the interaction
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body models.ChatRequest true "User question"
// @Success 200 {object} models.AnswerResult
// @Failure 400 {object} response.ProblemDetails
// @Router /api/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.answerService.Answer(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	// The answer is already produced; a history write failure degrades the
	// dashboard, not the user's reply.
	if _, err := h.chatLogs.Insert(
		r.Context(), req.Message, result.Answer, result.Category, result.Answered,
	); err != nil {
		h.logger.ErrorContext(r.Context(), "chat: writing chat log failed", "error", err)
	}

	response.RespondJSON(w, http.StatusOK, result)
}
