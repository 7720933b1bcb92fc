package jobs

import "context"

// Sink receives progress reports from an executor while a job runs. The
// pool provides an implementation that folds stage-local fractions into
// overall progress and broadcasts events.
type Sink interface {
	// StageProgress reports stage-local progress in [0,100] along with
	// display strings for transfer speed and estimated time remaining.
	// Speed and eta may be empty when unknown.
	StageProgress(stage string, fraction float64, speed, eta string)

	// Metadata reports the resolved title once it is known.
	Metadata(title string)

	// StatusText reports a short human-readable status line.
	StatusText(text string)
}

// Outcome describes a successfully finished job.
type Outcome struct {
	OutputPath string
	Title      string
}

// Executor runs the stages of one job kind. Run must call job.Checkpoint
// between units of work so pause and cancel take effect, and must return
// ErrCancelled (possibly wrapped) when the job was cancelled mid-run.
type Executor interface {
	Run(ctx context.Context, job *Job, sink Sink) (*Outcome, error)
}
