package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// PipelineCallbacks receive job lifecycle events. All fields are optional;
// progress persistence happens before the user callback regardless.
type PipelineCallbacks struct {
	OnJobProgress     func(job *models.Job, progress models.ScraperProgress)
	OnJobStatusChange func(job *models.Job)
	OnJobError        func(job *models.Job, err error, doc *models.Document)
}

// Pipeline schedules document indexing jobs. Both the in-process manager and
// the remote client implement it, so callers are deployment-agnostic.
type Pipeline interface {
	// Start is idempotent; the first call runs crash recovery when enabled
	// and begins consuming the queue.
	Start(ctx context.Context) error

	// Stop stops dispatching queued jobs. Running jobs are not cancelled.
	Stop() error

	// EnqueueJob registers a new job for (library, version), cancelling any
	// active job for the same key first, and returns the new job id.
	EnqueueJob(ctx context.Context, library, version string, opts *models.ScraperOptions) (string, error)

	// EnqueueJobWithStoredOptions re-enqueues using the version's persisted
	// source URL and options.
	EnqueueJobWithStoredOptions(ctx context.Context, library, version string) (string, error)

	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobs(ctx context.Context, status *models.JobStatus) ([]*models.Job, error)

	// CancelJob dequeues a queued job immediately or requests cooperative
	// cancellation of a running one. Terminal jobs are a no-op.
	CancelJob(ctx context.Context, id string) error

	// ClearCompletedJobs purges terminal jobs and returns how many.
	ClearCompletedJobs(ctx context.Context) (int, error)

	// WaitForJobCompletion blocks until the job reaches a terminal state.
	// Cancellation is not an error: it returns nil. Failure returns the
	// job's original error.
	WaitForJobCompletion(ctx context.Context, id string) error

	SetCallbacks(cb PipelineCallbacks)
}
