package pipeline

import (
	"github.com/ternarybob/scriptor/internal/models"
)

// pipelineJob is the manager's live job record: the public snapshot fields
// plus the runtime scrape options, cancellation token and completion signal.
// All field access is guarded by the manager's mutex except token and
// signal, which are safe to use concurrently.
type pipelineJob struct {
	models.Job

	options models.ScraperOptions
	token   *CancellationToken
	signal  *completionSignal
}

// snapshot returns a caller-safe copy of the public job state. Progress
// snapshots carry counters only; the page payload stays with the worker.
func (j *pipelineJob) snapshot() *models.Job {
	out := j.Job
	if j.Progress != nil {
		progress := *j.Progress
		progress.Document = nil
		out.Progress = &progress
	}
	if j.ScraperOptions != nil {
		opts := *j.ScraperOptions
		out.ScraperOptions = &opts
	}
	return &out
}

// jobTransitions is the set of legal job status changes. Anything else is
// rejected by setStatusLocked.
var jobTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusQueued:     {models.JobStatusRunning, models.JobStatusCancelled},
	models.JobStatusRunning:    {models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelling, models.JobStatusCancelled},
	models.JobStatusCancelling: {models.JobStatusCancelled},
}

func canTransition(from, to models.JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
