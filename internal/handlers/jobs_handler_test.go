package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

type enqueueCall struct {
	library string
	version string
	opts    *models.ScraperOptions
}

// fakePipeline records calls and plays back canned jobs so the handler can
// be exercised without a scraper or store behind it.
type fakePipeline struct {
	jobs        map[string]*models.Job
	enqueued    []enqueueCall
	stored      []enqueueCall
	enqueueErr  error
	listFilter  *models.JobStatus
	listErr     error
	cancelled   []string
	cancelErr   error
	clearCount  int
	clearErr    error
	nextJobID   string
}

var _ interfaces.Pipeline = (*fakePipeline)(nil)

func (f *fakePipeline) Start(ctx context.Context) error { return nil }
func (f *fakePipeline) Stop() error                     { return nil }

func (f *fakePipeline) EnqueueJob(ctx context.Context, library, version string, opts *models.ScraperOptions) (string, error) {
	f.enqueued = append(f.enqueued, enqueueCall{library, version, opts})
	return f.nextJobID, f.enqueueErr
}

func (f *fakePipeline) EnqueueJobWithStoredOptions(ctx context.Context, library, version string) (string, error) {
	f.stored = append(f.stored, enqueueCall{library: library, version: version})
	return f.nextJobID, f.enqueueErr
}

func (f *fakePipeline) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, &pipeline.JobNotFoundError{ID: id}
	}
	return job, nil
}

func (f *fakePipeline) GetJobs(ctx context.Context, status *models.JobStatus) ([]*models.Job, error) {
	f.listFilter = status
	if f.listErr != nil {
		return nil, f.listErr
	}
	jobs := make([]*models.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		if status == nil || job.Status == *status {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (f *fakePipeline) CancelJob(ctx context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return &pipeline.JobNotFoundError{ID: id}
	}
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

func (f *fakePipeline) ClearCompletedJobs(ctx context.Context) (int, error) {
	return f.clearCount, f.clearErr
}

func (f *fakePipeline) WaitForJobCompletion(ctx context.Context, id string) error { return nil }
func (f *fakePipeline) SetCallbacks(cb interfaces.PipelineCallbacks)              {}

func newJobsHandler(fake *fakePipeline) *JobsHandler {
	if fake.nextJobID == "" {
		fake.nextJobID = "job-new"
	}
	return NewJobsHandler(arbor.NewLogger(), fake)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestEnqueueJobHandler_WithOptions(t *testing.T) {
	fake := &fakePipeline{}
	handler := newJobsHandler(fake)

	body := `{"library":"React","version":"18.2.0","options":{"url":"https://react.dev/learn","maxPages":25}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.EnqueueJobHandler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "job-new", resp["jobId"])

	require.Len(t, fake.enqueued, 1)
	assert.Empty(t, fake.stored)
	assert.Equal(t, "React", fake.enqueued[0].library)
	assert.Equal(t, "18.2.0", fake.enqueued[0].version)
	require.NotNil(t, fake.enqueued[0].opts)
	assert.Equal(t, "https://react.dev/learn", fake.enqueued[0].opts.URL)
	assert.Equal(t, 25, fake.enqueued[0].opts.MaxPages)
}

func TestEnqueueJobHandler_NoOptionsUsesStoredConfiguration(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"options omitted", `{"library":"react","version":"18.2.0"}`},
		{"options without url", `{"library":"react","version":"18.2.0","options":{"maxPages":5}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakePipeline{}
			handler := newJobsHandler(fake)

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.EnqueueJobHandler(rec, req)

			require.Equal(t, http.StatusCreated, rec.Code)
			assert.Empty(t, fake.enqueued)
			require.Len(t, fake.stored, 1)
			assert.Equal(t, "react", fake.stored[0].library)
			assert.Equal(t, "18.2.0", fake.stored[0].version)
		})
	}
}

func TestEnqueueJobHandler_InvalidBody(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.EnqueueJobHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "invalid request body", resp["error"])
}

func TestEnqueueJobHandler_MissingLibrary(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"version":"1.0.0"}`))
	rec := httptest.NewRecorder()
	handler.EnqueueJobHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp["error"], "Library")
}

func TestEnqueueJobHandler_StateErrorIsBadRequest(t *testing.T) {
	fake := &fakePipeline{enqueueErr: &pipeline.StateError{Message: "no stored scraper options for react@unversioned"}}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"library":"react"}`))
	rec := httptest.NewRecorder()
	handler.EnqueueJobHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp["error"], "no stored scraper options")
}

func TestEnqueueJobHandler_UnexpectedErrorIsInternal(t *testing.T) {
	fake := &fakePipeline{enqueueErr: errors.New("store offline")}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"library":"react"}`))
	rec := httptest.NewRecorder()
	handler.EnqueueJobHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListJobsHandler(t *testing.T) {
	fake := &fakePipeline{jobs: map[string]*models.Job{
		"job-1": {ID: "job-1", Library: "react", Status: models.JobStatusCompleted, CreatedAt: time.Now()},
		"job-2": {ID: "job-2", Library: "vue", Status: models.JobStatusRunning, CreatedAt: time.Now()},
	}}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Jobs  []*models.Job `json:"jobs"`
		Count int           `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Jobs, 2)
	assert.Nil(t, fake.listFilter)
}

func TestListJobsHandler_StatusFilter(t *testing.T) {
	fake := &fakePipeline{jobs: map[string]*models.Job{
		"job-1": {ID: "job-1", Status: models.JobStatusCompleted},
		"job-2": {ID: "job-2", Status: models.JobStatusRunning},
	}}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=running", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, fake.listFilter)
	assert.Equal(t, models.JobStatusRunning, *fake.listFilter)

	var resp struct {
		Jobs  []*models.Job `json:"jobs"`
		Count int           `json:"count"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "job-2", resp.Jobs[0].ID)
}

func TestListJobsHandler_UnknownStatus(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=sleeping", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "unknown status: sleeping", resp["error"])
}

func TestGetJobHandler(t *testing.T) {
	fake := &fakePipeline{jobs: map[string]*models.Job{
		"job-1": {ID: "job-1", Library: "react", Version: "18.2.0", Status: models.JobStatusRunning},
	}}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "react", job.Library)
	assert.Equal(t, models.JobStatusRunning, job.Status)
}

func TestGetJobHandler_NotFound(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobHandler_MissingID(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelJobHandler(t *testing.T) {
	fake := &fakePipeline{jobs: map[string]*models.Job{
		"job-3": {ID: "job-3", Status: models.JobStatusRunning},
	}}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/job-3/cancel", nil)
	rec := httptest.NewRecorder()
	handler.CancelJobHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	decodeBody(t, rec, &resp)
	assert.True(t, resp["success"])
	assert.Equal(t, []string{"job-3"}, fake.cancelled)
}

func TestCancelJobHandler_NotFound(t *testing.T) {
	handler := newJobsHandler(&fakePipeline{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/missing/cancel", nil)
	rec := httptest.NewRecorder()
	handler.CancelJobHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCompletedJobsHandler(t *testing.T) {
	fake := &fakePipeline{clearCount: 3}
	handler := newJobsHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/clear-completed", nil)
	rec := httptest.NewRecorder()
	handler.ClearCompletedJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp["count"])
}
