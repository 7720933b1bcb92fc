package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind selects which stage executor runs a job.
type Kind string

const (
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindInstall Kind = "install"
)

// ParseKind maps a serialized kind to a known value, defaulting to video.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindAudio:
		return KindAudio
	case KindInstall:
		return KindInstall
	default:
		return KindVideo
	}
}

// Status represents the lifecycle state of a job. Paused is not a status:
// a paused job stays running with its execution blocked on the pause gate.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Spec holds the immutable parameters of one job.
type Spec struct {
	URL           string   `json:"url"`
	Kind          Kind     `json:"kind"`
	DestDir       string   `json:"destDir"`
	QualityHeight int      `json:"qualityHeight,omitempty"` // 0 = best available
	AudioQuality  int      `json:"audioQuality,omitempty"`  // kbps for MP3
	SubsLangs     []string `json:"subsLangs,omitempty"`
	EmbedSubs     bool     `json:"embedSubs,omitempty"`
	Container     string   `json:"container,omitempty"` // "mp4" or "mkv"
}

// Job is one schedulable unit of work. The immutable Spec is set at creation;
// the run-state fields are guarded by the job's own mutex so that two jobs
// never contend on the same lock. External readers take Snapshot() copies,
// never the live fields.
type Job struct {
	ID string `json:"id"`
	Spec

	Status     Status  `json:"status"`
	StatusText string  `json:"statusText"`
	Progress   float64 `json:"progress"` // 0-100, non-decreasing while running
	Speed      string  `json:"speed,omitempty"`
	ETA        string  `json:"eta,omitempty"`
	Title      string  `json:"title,omitempty"`
	OutputPath string  `json:"outputPath,omitempty"`
	Error      string  `json:"error,omitempty"`

	CreatedAt   time.Time `json:"createdAt"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty"`

	mu        sync.Mutex
	paused    bool
	pauseCh   chan struct{} // non-nil while paused, closed on resume
	cancelled bool
	cancelCh  chan struct{} // closed on cancel, never reopened
}

// NewJob creates a queued job with a fresh id and an open pause gate.
func NewJob(spec Spec) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Spec:       spec,
		Status:     StatusQueued,
		StatusText: "Queued",
		CreatedAt:  time.Now(),
		cancelCh:   make(chan struct{}),
	}
}

// Pause closes the pause gate. The job's execution blocks at its next
// checkpoint. Idempotent; no-op once the job is terminal.
func (j *Job) Pause() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.paused || j.isTerminalLocked() {
		return
	}
	j.paused = true
	j.pauseCh = make(chan struct{})
	j.StatusText = "Paused"
}

// Resume reopens the pause gate, waking a blocked execution. Idempotent.
func (j *Job) Resume() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.paused {
		return
	}
	j.paused = false
	close(j.pauseCh)
	j.pauseCh = nil
	if !j.isTerminalLocked() {
		j.StatusText = "Resuming..."
	}
}

// Cancel sets the monotonic cancel flag. It cannot be undone; the execution
// observes it at its next checkpoint, even while paused.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return
	}
	j.cancelled = true
	close(j.cancelCh)
	if !j.isTerminalLocked() {
		j.StatusText = "Cancelling..."
	}
}

// IsPaused reports whether the pause gate is closed.
func (j *Job) IsPaused() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.paused
}

// IsCancelled reports whether the cancel flag is set.
func (j *Job) IsCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Checkpoint is the cooperative control point called by executors before or
// during each bounded unit of work. It returns ErrCancelled once the cancel
// flag is set, and otherwise blocks (without spinning) while the pause gate
// is closed. A cancel request wakes a paused checkpoint immediately.
func (j *Job) Checkpoint() error {
	for {
		j.mu.Lock()
		if j.cancelled {
			j.mu.Unlock()
			return ErrCancelled
		}
		if !j.paused {
			j.mu.Unlock()
			return nil
		}
		gate := j.pauseCh
		j.mu.Unlock()

		select {
		case <-gate:
		case <-j.cancelCh:
		}
	}
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.isTerminalLocked()
}

func (j *Job) isTerminalLocked() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled
}

// Snapshot returns a consistent copy of the job's state for events and
// serialization. The copy carries the paused and cancelled flags but no
// channels; control methods on a snapshot affect nothing.
func (j *Job) Snapshot() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &Job{
		ID:          j.ID,
		Spec:        j.Spec,
		Status:      j.Status,
		StatusText:  j.StatusText,
		paused:      j.paused,
		cancelled:   j.cancelled,
		Progress:    j.Progress,
		Speed:       j.Speed,
		ETA:         j.ETA,
		Title:       j.Title,
		OutputPath:  j.OutputPath,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
