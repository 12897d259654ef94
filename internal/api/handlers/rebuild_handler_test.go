package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusgpu/askbot/internal/service"
)

type mockRebuildService struct {
	submitFn func() service.RebuildJob
	statusFn func(id string) (service.RebuildJob, error)
}

func (m *mockRebuildService) Submit() service.RebuildJob {
	return m.submitFn()
}

func (m *mockRebuildService) Status(id string) (service.RebuildJob, error) {
	return m.statusFn(id)
}

func TestRebuildReturnsAcceptedWithJob(t *testing.T) {
	svc := &mockRebuildService{
		submitFn: func() service.RebuildJob {
			return service.RebuildJob{ID: "job-1", State: service.JobStatePending}
		},
	}
	h := NewRebuildHandler(svc)

	rec := httptest.NewRecorder()
	h.Rebuild(rec, httptest.NewRequest(http.MethodPost, "/api/dashboard/rebuild_rag", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var job service.RebuildJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, service.JobStatePending, job.State)
}

func TestJobStatus(t *testing.T) {
	svc := &mockRebuildService{
		statusFn: func(id string) (service.RebuildJob, error) {
			assert.Equal(t, "job-1", id)

			return service.RebuildJob{ID: id, State: service.JobStateSucceeded}, nil
		},
	}
	h := NewRebuildHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/rebuild_jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	rec := httptest.NewRecorder()
	h.JobStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var job service.RebuildJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, service.JobStateSucceeded, job.State)
}

func TestJobStatusUnknownJob(t *testing.T) {
	svc := &mockRebuildService{
		statusFn: func(string) (service.RebuildJob, error) {
			return service.RebuildJob{}, service.ErrJobNotFound
		},
	}
	h := NewRebuildHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/rebuild_jobs/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.JobStatus(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
