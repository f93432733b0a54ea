package models

import "time"

// JobStatus is the lifecycle state of a pipeline job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ParseJobStatus validates a status string received from an API surface.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch status := JobStatus(s); status {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelling, JobStatusCancelled:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the job still occupies its (library, version) key.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCancelling:
		return true
	}
	return false
}

// VersionStatus returns the version-row mirror of a job status. CANCELLING
// keeps the durable state at running until the job reaches a terminal state.
func (s JobStatus) VersionStatus() VersionStatus {
	switch s {
	case JobStatusQueued:
		return VersionStatusQueued
	case JobStatusRunning, JobStatusCancelling:
		return VersionStatusRunning
	case JobStatusCompleted:
		return VersionStatusCompleted
	case JobStatusFailed:
		return VersionStatusFailed
	case JobStatusCancelled:
		return VersionStatusCancelled
	}
	return VersionStatusNotIndexed
}

// Job is the public view of a pipeline job. The pipeline keeps the live copy
// (with its cancellation token and completion signal); this snapshot is what
// callers and the jobs API see.
type Job struct {
	ID             string           `json:"id"`
	Library        string           `json:"library"`
	Version        string           `json:"version"`
	Status         JobStatus        `json:"status"`
	Progress       *ScraperProgress `json:"progress,omitempty"`
	Error          string           `json:"error,omitempty"`
	SourceURL      string           `json:"sourceUrl,omitempty"`
	ScraperOptions *ScraperOptions  `json:"scraperOptions,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	StartedAt      *time.Time       `json:"startedAt,omitempty"`
	FinishedAt     *time.Time       `json:"finishedAt,omitempty"`

	// VersionID is the resolved version row the job mirrors its state to.
	VersionID int64 `json:"-"`
}
