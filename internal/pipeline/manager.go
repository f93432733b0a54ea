package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Manager is the in-process pipeline: a FIFO queue of jobs drained by a
// fixed-size worker pool. Every job status change is written through to the
// version row, so the durable state always reflects the in-memory state and
// interrupted work can be recovered on the next start.
type Manager struct {
	store   interfaces.DocumentStorage
	scraper interfaces.Scraper
	config  *common.Config
	logger  arbor.ILogger

	concurrency int

	mu        sync.Mutex
	jobs      map[string]*pipelineJob
	queue     []string
	running   int
	callbacks interfaces.PipelineCallbacks
	started   bool
	stopped   bool
}

var _ interfaces.Pipeline = (*Manager)(nil)

func NewManager(logger arbor.ILogger, config *common.Config, store interfaces.DocumentStorage, scraper interfaces.Scraper) *Manager {
	if logger == nil {
		logger = common.GetLogger()
	}
	if config == nil {
		config = common.NewDefaultConfig()
	}
	concurrency := config.Pipeline.Concurrency
	if concurrency <= 0 {
		concurrency = common.DefaultConcurrency
	}
	return &Manager{
		store:       store,
		scraper:     scraper,
		config:      config,
		logger:      logger,
		concurrency: concurrency,
		jobs:        make(map[string]*pipelineJob),
	}
}

// Start is idempotent. The first call recovers interrupted jobs from the
// version rows when recovery is enabled, then begins draining the queue.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if m.config.Pipeline.RecoverJobs {
		if err := m.recoverPendingJobs(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Job recovery failed, continuing without recovered jobs")
		}
	}

	m.mu.Lock()
	m.dispatchLocked()
	m.mu.Unlock()

	m.logger.Info().Int("concurrency", m.concurrency).Msg("Pipeline started")
	return nil
}

// Stop stops dispatching queued jobs. Running jobs keep their workers and
// settle normally.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		return nil
	}
	m.stopped = true
	m.logger.Info().Int("queued", len(m.queue)).Int("running", m.running).Msg("Pipeline stopped")
	return nil
}

// EnqueueJob registers a new job for (library, version) and returns its id.
// An active job for the same key is superseded: it is cancelled and awaited
// first so two scrapes never interleave on one version.
func (m *Manager) EnqueueJob(ctx context.Context, library, version string, opts *models.ScraperOptions) (string, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	version = strings.ToLower(strings.TrimSpace(version))
	if library == "" {
		return "", &StateError{Message: "library name is required"}
	}

	runtime := models.ScraperOptions{}
	if opts != nil {
		runtime = *opts
	}
	runtime = runtime.WithDefaults()
	runtime.Library = library
	runtime.Version = version
	if runtime.URL == "" {
		return "", &StateError{Message: "source url is required"}
	}

	m.mu.Lock()
	duplicate := m.findActiveLocked(library, version)
	if duplicate != nil {
		m.logger.Info().
			Str("job_id", duplicate.ID).
			Str("library", library).
			Str("version", version).
			Msg("Superseding active job for the same library version")
		m.cancelLocked(duplicate)
	}
	m.mu.Unlock()
	if duplicate != nil {
		// Best effort: a failure while winding down must not block the
		// replacement job.
		_ = duplicate.signal.Wait(ctx)
	}

	_, versionID, err := m.store.ResolveIds(ctx, library, version)
	if err != nil {
		return "", fmt.Errorf("resolving library and version: %w", err)
	}

	if err := m.store.StoreScraperOptions(ctx, versionID, runtime); err != nil {
		m.logger.Warn().Err(err).Int64("version_id", versionID).Msg("Failed to persist scraper options")
	}

	// A completed version being re-indexed shows updating rather than
	// queued, so consumers can tell a refresh from a first index.
	initial := models.VersionStatusQueued
	if record, err := m.store.GetVersionByID(ctx, versionID); err == nil && record != nil && record.Status == models.VersionStatusCompleted {
		initial = models.VersionStatusUpdating
	}
	if err := m.store.UpdateVersionStatus(ctx, versionID, initial, ""); err != nil {
		m.logger.Warn().Err(err).Int64("version_id", versionID).Msg("Failed to mirror queued status to version row")
	}

	job := &pipelineJob{
		Job: models.Job{
			ID:             uuid.New().String(),
			Library:        library,
			Version:        version,
			Status:         models.JobStatusQueued,
			SourceURL:      runtime.URL,
			ScraperOptions: &runtime,
			CreatedAt:      time.Now(),
			VersionID:      versionID,
		},
		options: runtime,
		token:   NewCancellationToken(),
		signal:  newCompletionSignal(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.queue = append(m.queue, job.ID)
	m.dispatchLocked()
	m.mu.Unlock()

	m.logger.Info().
		Str("job_id", job.ID).
		Str("library", library).
		Str("version", version).
		Str("url", runtime.URL).
		Msg("Job queued")
	return job.ID, nil
}

// EnqueueJobWithStoredOptions re-enqueues a version using the source URL and
// options persisted by its last index run.
func (m *Manager) EnqueueJobWithStoredOptions(ctx context.Context, library, version string) (string, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	version = strings.ToLower(strings.TrimSpace(version))

	_, versionID, err := m.store.ResolveIds(ctx, library, version)
	if err != nil {
		return "", fmt.Errorf("resolving library and version: %w", err)
	}
	stored, err := m.store.GetScraperOptions(ctx, versionID)
	if err != nil {
		return "", err
	}
	if stored == nil || stored.SourceURL == "" {
		return "", &StateError{Message: fmt.Sprintf("no stored scraper options for %s@%s", library, displayVersion(version))}
	}

	opts := stored.Options
	opts.URL = stored.SourceURL
	return m.EnqueueJob(ctx, library, version, &opts)
}

func (m *Manager) GetJob(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, &JobNotFoundError{ID: id}
	}
	return job.snapshot(), nil
}

func (m *Manager) GetJobs(ctx context.Context, status *models.JobStatus) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if status != nil && job.Status != *status {
			continue
		}
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// CancelJob dequeues a queued job immediately or requests cooperative
// cancellation of a running one. Cancelling a terminal job is a no-op.
func (m *Manager) CancelJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return &JobNotFoundError{ID: id}
	}
	m.cancelLocked(job)
	return nil
}

// ClearCompletedJobs drops terminal jobs from the in-memory map and returns
// how many were removed. Version rows are untouched.
func (m *Manager) ClearCompletedJobs(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for id, job := range m.jobs {
		if job.Status.IsTerminal() {
			delete(m.jobs, id)
			cleared++
		}
	}
	if cleared > 0 {
		m.logger.Info().Int("count", cleared).Msg("Cleared completed jobs")
	}
	return cleared, nil
}

// WaitForJobCompletion blocks until the job settles or ctx expires.
// Cancellation is a normal outcome and returns nil; a failed job returns
// its original error.
func (m *Manager) WaitForJobCompletion(ctx context.Context, id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return &JobNotFoundError{ID: id}
	}
	return job.signal.Wait(ctx)
}

func (m *Manager) SetCallbacks(cb interfaces.PipelineCallbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// dispatchLocked starts queued jobs while worker slots are free. It runs
// after every enqueue, completion and cancellation, so the queue drains
// without any polling loop.
func (m *Manager) dispatchLocked() {
	if !m.started || m.stopped {
		return
	}
	for m.running < m.concurrency && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]

		job, ok := m.jobs[id]
		if !ok || job.Status != models.JobStatusQueued {
			continue
		}

		now := time.Now()
		job.StartedAt = &now
		if err := m.setStatusLocked(job, models.JobStatusRunning, ""); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Skipping undispatchable job")
			continue
		}
		m.running++

		worker := job
		common.SafeGo(m.logger, "pipeline-worker", func() {
			m.runJob(worker)
		})
	}
}

// cancelLocked applies the cancel transition for the job's current state.
func (m *Manager) cancelLocked(job *pipelineJob) {
	switch job.Status {
	case models.JobStatusQueued:
		m.removeFromQueueLocked(job.ID)
		job.token.Cancel()
		if err := m.setStatusLocked(job, models.JobStatusCancelled, ""); err != nil {
			return
		}
		now := time.Now()
		job.FinishedAt = &now
		job.signal.Reject(&CancellationError{JobID: job.ID, Message: "Job cancelled before start"})
		m.logger.Info().Str("job_id", job.ID).Msg("Queued job cancelled")
	case models.JobStatusRunning:
		if err := m.setStatusLocked(job, models.JobStatusCancelling, ""); err != nil {
			return
		}
		job.token.Cancel()
		m.logger.Info().Str("job_id", job.ID).Msg("Cancellation requested for running job")
	case models.JobStatusCancelling:
		m.logger.Warn().Str("job_id", job.ID).Msg("Job is already cancelling")
	default:
		m.logger.Warn().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("Cannot cancel job in terminal state")
	}
}

func (m *Manager) removeFromQueueLocked(id string) {
	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *Manager) findActiveLocked(library, version string) *pipelineJob {
	for _, job := range m.jobs {
		if job.Library == library && job.Version == version && job.Status.IsActive() {
			return job
		}
	}
	return nil
}

// setStatusLocked transitions the in-memory job, then mirrors the new state
// to the version row. Mirror failures are logged and never roll back the
// in-memory transition.
func (m *Manager) setStatusLocked(job *pipelineJob, status models.JobStatus, errorMessage string) error {
	if !canTransition(job.Status, status) {
		return &StateError{
			JobID:   job.ID,
			Message: fmt.Sprintf("invalid status transition %s -> %s", job.Status, status),
		}
	}
	job.Status = status
	job.Error = errorMessage

	if err := m.store.UpdateVersionStatus(context.Background(), job.VersionID, status.VersionStatus(), errorMessage); err != nil {
		m.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("status", string(status)).
			Msg("Failed to mirror job status to version row")
	}

	if cb := m.callbacks.OnJobStatusChange; cb != nil {
		snapshot := job.snapshot()
		common.SafeGo(m.logger, "job-status-callback", func() {
			cb(snapshot)
		})
	}
	return nil
}

func displayVersion(version string) string {
	if version == "" {
		return "unversioned"
	}
	return version
}
