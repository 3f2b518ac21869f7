package jobs

import (
	"errors"
	"fmt"

	"github.com/jonathan/mapping-testgen/internal/types"
)

// ErrNotFound is returned for job ids with no status record.
var ErrNotFound = errors.New("job not found")

// ValidationError rejects a submission before any job is created.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid job input: %s: %v", e.Message, e.Cause)
	}
	return "invalid job input: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NotReadyError is returned when results are requested for a job that has
// not completed. A failed job carries its error message.
type NotReadyError struct {
	JobID   string
	Status  types.JobStatus
	Message string
}

func (e *NotReadyError) Error() string {
	if e.Failed() {
		return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
	}
	return fmt.Sprintf("job %s is not ready (status %s)", e.JobID, e.Status)
}

// Failed reports whether the job reached the failed state.
func (e *NotReadyError) Failed() bool {
	return e.Status == types.StatusFailed
}
