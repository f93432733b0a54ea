package pipeline

import (
	"errors"
	"fmt"
)

// JobNotFoundError reports a job id that is not in the manager's job map.
type JobNotFoundError struct {
	ID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.ID)
}

// StateError reports an operation that is invalid for the job's current
// lifecycle state, such as dispatching a job that is no longer queued.
type StateError struct {
	JobID   string
	Message string
}

func (e *StateError) Error() string {
	if e.JobID == "" {
		return e.Message
	}
	return fmt.Sprintf("job %s: %s", e.JobID, e.Message)
}

// CancellationError marks a job that ended by cancellation rather than
// failure. Completion waiters treat it as a normal outcome.
type CancellationError struct {
	JobID   string
	Message string
}

func (e *CancellationError) Error() string {
	if e.Message == "" {
		return "operation cancelled"
	}
	return e.Message
}

// IsCancellation reports whether err is, or wraps, a CancellationError.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}
