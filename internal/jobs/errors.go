package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
// These can be checked with errors.Is().
var (
	// ErrCancelled is returned from a cooperative checkpoint once a job's
	// cancel flag is set. It marks a user-requested stop, not a failure.
	ErrCancelled = errors.New("job cancelled")

	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already in terminal state")
)

// jobNotFoundError returns a wrapped error for a missing job.
func jobNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// jobTerminalError returns a wrapped error for a job that already finished.
func jobTerminalError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrJobTerminal, status, id)
}
