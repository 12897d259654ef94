package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusgpu/askbot/internal/apperrors"
	"github.com/nimbusgpu/askbot/internal/models"
	"github.com/nimbusgpu/askbot/internal/repository"
)

type mockChatLogsRepo struct {
	getByIDFn        func(ctx context.Context, id int64) (*models.ChatLog, error)
	listAllFn        func(ctx context.Context) ([]models.ChatLog, error)
	listUnansweredFn func(ctx context.Context, limit int) ([]models.ChatLog, error)
	markCorrectedFn  func(ctx context.Context, id int64, answer string) error
	dailyCountsFn    func(ctx context.Context) (map[string]int, error)
	categoryCountsFn func(ctx context.Context) ([]models.CategoryCount, error)
}

func (m *mockChatLogsRepo) GetByID(ctx context.Context, id int64) (*models.ChatLog, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockChatLogsRepo) ListAll(ctx context.Context) ([]models.ChatLog, error) {
	return m.listAllFn(ctx)
}

func (m *mockChatLogsRepo) ListUnanswered(ctx context.Context, limit int) ([]models.ChatLog, error) {
	return m.listUnansweredFn(ctx, limit)
}

func (m *mockChatLogsRepo) MarkCorrected(ctx context.Context, id int64, answer string) error {
	return m.markCorrectedFn(ctx, id, answer)
}

func (m *mockChatLogsRepo) DailyCounts(ctx context.Context) (map[string]int, error) {
	return m.dailyCountsFn(ctx)
}

func (m *mockChatLogsRepo) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	return m.categoryCountsFn(ctx)
}

type mockLedger struct {
	appendFn func(rec models.SourceRecord) error
	appended []models.SourceRecord
}

func (m *mockLedger) Append(rec models.SourceRecord) error {
	m.appended = append(m.appended, rec)
	if m.appendFn != nil {
		return m.appendFn(rec)
	}

	return nil
}

func TestUpdateAnswerCorrectsLogAndRecordsLedgerEntry(t *testing.T) {
	repo := &mockChatLogsRepo{
		getByIDFn: func(_ context.Context, id int64) (*models.ChatLog, error) {
			return &models.ChatLog{ID: id, Question: "how do I attach a volume"}, nil
		},
		markCorrectedFn: func(_ context.Context, id int64, answer string) error {
			assert.Equal(t, int64(7), id)
			assert.Equal(t, "Use the volumes tab.", answer)

			return nil
		},
	}
	ledger := &mockLedger{}

	svc := NewDashboardService(DashboardServiceParams{ChatLogsRepo: repo, Ledger: ledger})

	err := svc.UpdateAnswer(context.Background(), models.UpdateAnswerRequest{
		LogID:  7,
		Answer: "Use the volumes tab.",
	})
	require.NoError(t, err)

	require.Len(t, ledger.appended, 1)
	assert.Equal(t, "how do I attach a volume", ledger.appended[0].Instruction)
	assert.Equal(t, "Use the volumes tab.", ledger.appended[0].Output)
}

func TestUpdateAnswerUnknownLog(t *testing.T) {
	repo := &mockChatLogsRepo{
		getByIDFn: func(context.Context, int64) (*models.ChatLog, error) {
			return nil, repository.ErrChatLogNotFound
		},
	}

	svc := NewDashboardService(DashboardServiceParams{ChatLogsRepo: repo, Ledger: &mockLedger{}})

	err := svc.UpdateAnswer(context.Background(), models.UpdateAnswerRequest{LogID: 99, Answer: "a"})

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestUpdateAnswerLedgerFailureDoesNotFailCorrection(t *testing.T) {
	repo := &mockChatLogsRepo{
		getByIDFn: func(_ context.Context, id int64) (*models.ChatLog, error) {
			return &models.ChatLog{ID: id, Question: "q"}, nil
		},
		markCorrectedFn: func(context.Context, int64, string) error {
			return nil
		},
	}
	ledger := &mockLedger{
		appendFn: func(models.SourceRecord) error {
			return assert.AnError
		},
	}

	svc := NewDashboardService(DashboardServiceParams{ChatLogsRepo: repo, Ledger: ledger})

	err := svc.UpdateAnswer(context.Background(), models.UpdateAnswerRequest{LogID: 1, Answer: "a"})
	require.NoError(t, err, "ledger failure must not undo the visible correction")
}

func TestMissedQuestionsUsesLimit(t *testing.T) {
	repo := &mockChatLogsRepo{
		listUnansweredFn: func(_ context.Context, limit int) ([]models.ChatLog, error) {
			assert.Equal(t, missedQuestionsLimit, limit)

			return []models.ChatLog{{ID: 1}}, nil
		},
	}

	svc := NewDashboardService(DashboardServiceParams{ChatLogsRepo: repo, Ledger: &mockLedger{}})

	logs, err := svc.MissedQuestions(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestQALibraryMissingFileIsEmpty(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		ChatLogsRepo: &mockChatLogsRepo{},
		Ledger:       &mockLedger{},
		SourcePath:   filepath.Join(t.TempDir(), "absent.json"),
	})

	records, err := svc.QALibrary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestQALibraryReadsSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa_data.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"instruction":"q1","output":"a1"},{"instruction":"q2","output":"a2"}]`), 0o644))

	svc := NewDashboardService(DashboardServiceParams{
		ChatLogsRepo: &mockChatLogsRepo{},
		Ledger:       &mockLedger{},
		SourcePath:   path,
	})

	records, err := svc.QALibrary(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q1", records[0].Instruction)
}
