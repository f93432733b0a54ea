package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// JobsHandler exposes the pipeline over HTTP. The RemoteClient in
// internal/pipeline speaks to exactly this surface.
type JobsHandler struct {
	pipeline interfaces.Pipeline
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewJobsHandler(logger arbor.ILogger, p interfaces.Pipeline) *JobsHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &JobsHandler{
		pipeline: p,
		validate: validator.New(),
		logger:   logger,
	}
}

type enqueueJobRequest struct {
	Library string                 `json:"library" validate:"required"`
	Version string                 `json:"version"`
	Options *models.ScraperOptions `json:"options"`
}

// EnqueueJobHandler handles POST /api/jobs. Requests without options (or
// without a source URL in them) re-index from the version's stored scrape
// configuration.
func (h *JobsHandler) EnqueueJobHandler(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var jobID string
	var err error
	if req.Options == nil || req.Options.URL == "" {
		jobID, err = h.pipeline.EnqueueJobWithStoredOptions(r.Context(), req.Library, req.Version)
	} else {
		jobID, err = h.pipeline.EnqueueJob(r.Context(), req.Library, req.Version, req.Options)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("library", req.Library).Msg("Enqueue rejected")
		WriteError(w, enqueueStatus(err), err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"jobId": jobID,
	})
}

// ListJobsHandler handles GET /api/jobs?status=
func (h *JobsHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	var filter *models.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := models.ParseJobStatus(raw)
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
		filter = &status
	}

	jobs, err := h.pipeline.GetJobs(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("List jobs failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobsHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.pipeline.GetJob(r.Context(), id)
	if err != nil {
		var notFound *pipeline.JobNotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("job_id", id).Msg("Get job failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel
func (h *JobsHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id = strings.Trim(strings.TrimSuffix(id, "/cancel"), "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	if err := h.pipeline.CancelJob(r.Context(), id); err != nil {
		var notFound *pipeline.JobNotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("job_id", id).Msg("Cancel job failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{
		"success": true,
	})
}

// ClearCompletedJobsHandler handles POST /api/jobs/clear-completed
func (h *JobsHandler) ClearCompletedJobsHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.pipeline.ClearCompletedJobs(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Clear completed jobs failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{
		"count": count,
	})
}

// enqueueStatus maps enqueue failures to HTTP status codes. State problems
// (missing stored options, bad transitions) are the caller's to fix.
func enqueueStatus(err error) int {
	var stateErr *pipeline.StateError
	if errors.As(err, &stateErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
