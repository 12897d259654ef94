package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nimbusgpu/askbot/internal/apperrors"
	"github.com/nimbusgpu/askbot/internal/models"
	"github.com/nimbusgpu/askbot/internal/repository"
)

const missedQuestionsLimit = 50

// ChatLogsRepositoryForDashboard provides the chat-log operations the dashboard reads and writes.
type ChatLogsRepositoryForDashboard interface {
	GetByID(ctx context.Context, id int64) (*models.ChatLog, error)
	ListAll(ctx context.Context) ([]models.ChatLog, error)
	ListUnanswered(ctx context.Context, limit int) ([]models.ChatLog, error)
	MarkCorrected(ctx context.Context, id int64, answer string) error
	DailyCounts(ctx context.Context) (map[string]int, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}

// CorrectionLedger records operator-supplied answers for the next corpus rebuild.
type CorrectionLedger interface {
	Append(rec models.SourceRecord) error
}

// DashboardService serves the operator dashboard: traffic stats, the missed
// question queue, manual corrections, and the Q&A library view.
type DashboardService struct {
	chatLogsRepo ChatLogsRepositoryForDashboard
	ledger       CorrectionLedger
	sourcePath   string
	logger       *slog.Logger
}

// DashboardServiceParams configures DashboardService.
type DashboardServiceParams struct {
	ChatLogsRepo ChatLogsRepositoryForDashboard
	Ledger       CorrectionLedger
	SourcePath   string
	Logger       *slog.Logger
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(p DashboardServiceParams) *DashboardService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DashboardService{
		chatLogsRepo: p.ChatLogsRepo,
		ledger:       p.Ledger,
		sourcePath:   p.SourcePath,
		logger:       logger,
	}
}

// DailyStats returns the per-day question counts keyed by YYYY-MM-DD.
func (s *DashboardService) DailyStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.chatLogsRepo.DailyCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}

	return counts, nil
}

// CategoryStats returns the per-category question counts.
func (s *DashboardService) CategoryStats(ctx context.Context) ([]models.CategoryCount, error) {
	counts, err := s.chatLogsRepo.CategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}

	return counts, nil
}

// MissedQuestions returns the most recent unanswered questions awaiting a
// manual correction.
func (s *DashboardService) MissedQuestions(ctx context.Context) ([]models.ChatLog, error) {
	logs, err := s.chatLogsRepo.ListUnanswered(ctx, missedQuestionsLimit)
	if err != nil {
		return nil, fmt.Errorf("list unanswered: %w", err)
	}

	return logs, nil
}

// AllQuestions returns the complete chat history, newest first.
func (s *DashboardService) AllQuestions(ctx context.Context) ([]models.ChatLog, error) {
	logs, err := s.chatLogsRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}

	return logs, nil
}

// UpdateAnswer records an operator's answer for a previously missed question.
// The chat log is corrected first; appending to the correction ledger is best
// effort, because the correction is already visible to the user and the
// ledger only feeds the next rebuild.
func (s *DashboardService) UpdateAnswer(ctx context.Context, req models.UpdateAnswerRequest) error {
	log, err := s.chatLogsRepo.GetByID(ctx, req.LogID)
	if err != nil {
		if errors.Is(err, repository.ErrChatLogNotFound) {
			return apperrors.NewNotFoundError("chat log", fmt.Sprintf("chat log %d not found", req.LogID))
		}

		return fmt.Errorf("get chat log: %w", err)
	}

	if err := s.chatLogsRepo.MarkCorrected(ctx, req.LogID, req.Answer); err != nil {
		if errors.Is(err, repository.ErrChatLogNotFound) {
			return apperrors.NewNotFoundError("chat log", fmt.Sprintf("chat log %d not found", req.LogID))
		}

		return fmt.Errorf("mark corrected: %w", err)
	}

	if err := s.ledger.Append(models.SourceRecord{
		Instruction: log.Question,
		Output:      req.Answer,
	}); err != nil {
		s.logger.Error("update answer: appending correction ledger failed",
			"error", err, "log_id", req.LogID)
	}

	return nil
}

// QALibrary returns the authoritative Q&A source records. A missing source
// file is an empty library, not an error.
func (s *DashboardService) QALibrary(ctx context.Context) ([]models.SourceRecord, error) {
	data, err := os.ReadFile(s.sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.SourceRecord{}, nil
		}

		return nil, fmt.Errorf("reading source file: %w", err)
	}

	var records []models.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing source file: %w", err)
	}

	return records, nil
}
