package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusgpu/askbot/internal/apperrors"
	"github.com/nimbusgpu/askbot/internal/models"
)

type mockDashboardService struct {
	dailyStatsFn      func(ctx context.Context) (map[string]int, error)
	categoryStatsFn   func(ctx context.Context) ([]models.CategoryCount, error)
	missedQuestionsFn func(ctx context.Context) ([]models.ChatLog, error)
	allQuestionsFn    func(ctx context.Context) ([]models.ChatLog, error)
	updateAnswerFn    func(ctx context.Context, req models.UpdateAnswerRequest) error
	qaLibraryFn       func(ctx context.Context) ([]models.SourceRecord, error)
}

func (m *mockDashboardService) DailyStats(ctx context.Context) (map[string]int, error) {
	return m.dailyStatsFn(ctx)
}

func (m *mockDashboardService) CategoryStats(ctx context.Context) ([]models.CategoryCount, error) {
	return m.categoryStatsFn(ctx)
}

func (m *mockDashboardService) MissedQuestions(ctx context.Context) ([]models.ChatLog, error) {
	return m.missedQuestionsFn(ctx)
}

func (m *mockDashboardService) AllQuestions(ctx context.Context) ([]models.ChatLog, error) {
	return m.allQuestionsFn(ctx)
}

func (m *mockDashboardService) UpdateAnswer(ctx context.Context, req models.UpdateAnswerRequest) error {
	return m.updateAnswerFn(ctx, req)
}

func (m *mockDashboardService) QALibrary(ctx context.Context) ([]models.SourceRecord, error) {
	return m.qaLibraryFn(ctx)
}

func TestDailyStats(t *testing.T) {
	svc := &mockDashboardService{
		dailyStatsFn: func(context.Context) (map[string]int, error) {
			return map[string]int{"2026-08-30": 12, "2026-08-31": 4}, nil
		},
	}
	h := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	h.DailyStats(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/daily_stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 12, stats["2026-08-30"])
}

func TestCategoryStats(t *testing.T) {
	svc := &mockDashboardService{
		categoryStatsFn: func(context.Context) ([]models.CategoryCount, error) {
			return []models.CategoryCount{{Name: models.CategoryPricing, Value: 3}}, nil
		},
	}
	h := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	h.CategoryStats(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/category_stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var counts []models.CategoryCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	require.Len(t, counts, 1)
	assert.Equal(t, models.CategoryPricing, counts[0].Name)
}

func TestMissedQuestions(t *testing.T) {
	svc := &mockDashboardService{
		missedQuestionsFn: func(context.Context) ([]models.ChatLog, error) {
			return []models.ChatLog{{ID: 7, Question: "q", Answered: false}}, nil
		},
	}
	h := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	h.MissedQuestions(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/missed_questions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_answered":false`)
}

func TestAllQuestionsServiceFailure(t *testing.T) {
	svc := &mockDashboardService{
		allQuestionsFn: func(context.Context) ([]models.ChatLog, error) {
			return nil, assert.AnError
		},
	}
	h := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	h.AllQuestions(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/all_questions", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func postUpdateAnswer(t *testing.T, h *DashboardHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/dashboard/update_answer", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.UpdateAnswer(rec, req)

	return rec
}

func TestUpdateAnswer(t *testing.T) {
	svc := &mockDashboardService{
		updateAnswerFn: func(_ context.Context, req models.UpdateAnswerRequest) error {
			assert.Equal(t, int64(7), req.LogID)
			assert.Equal(t, "Use port 22", req.Answer)

			return nil
		},
	}
	h := NewDashboardHandler(svc)

	rec := postUpdateAnswer(t, h, `{"log_id":7,"answer":"Use port 22"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateAnswerValidation(t *testing.T) {
	h := NewDashboardHandler(&mockDashboardService{})

	assert.Equal(t, http.StatusBadRequest, postUpdateAnswer(t, h, `{"answer":"a"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postUpdateAnswer(t, h, `{"log_id":7,"answer":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, postUpdateAnswer(t, h, `{bad`).Code)
}

func TestUpdateAnswerNotFound(t *testing.T) {
	svc := &mockDashboardService{
		updateAnswerFn: func(context.Context, models.UpdateAnswerRequest) error {
			return apperrors.NewNotFoundError("chat log", "chat log 99 not found")
		},
	}
	h := NewDashboardHandler(svc)

	rec := postUpdateAnswer(t, h, `{"log_id":99,"answer":"a"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQALibrary(t *testing.T) {
	svc := &mockDashboardService{
		qaLibraryFn: func(context.Context) ([]models.SourceRecord, error) {
			return []models.SourceRecord{{Instruction: "q", Output: "a"}}, nil
		},
	}
	h := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	h.QALibrary(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/qa_library", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"instruction":"q"`)
}
