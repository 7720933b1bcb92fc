package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/downvid/downvid/internal/config"
	"github.com/downvid/downvid/internal/logger"
)

// Expander resolves a URL that may name a playlist into the URLs of its
// entries. A plain video URL expands to itself.
type Expander interface {
	Expand(ctx context.Context, ref string) ([]string, error)
}

// Store persists the queue snapshot across restarts.
type Store interface {
	SaveSnapshot(snap *Snapshot) error
	LoadSnapshot() (*Snapshot, error)
	Close() error
}

// Submitter hands accepted jobs to the worker pool. The queue calls it once
// per job, in submission order.
type Submitter interface {
	Submit(job *Job)
}

// Queue owns every job the server knows about and is the single writer of
// job lifecycle state. Executors report through the pool, which calls back
// into the queue; clients mutate jobs only through queue methods.
type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	order     []string // submission order, terminal jobs removed lazily
	completed []string // display records, oldest first

	bus      *Bus
	store    Store
	expander Expander
	submit   Submitter
	cfg      *config.Config
}

// NewQueue creates an empty queue. The submitter is attached later with
// SetSubmitter because the pool needs the queue at construction time.
func NewQueue(cfg *config.Config, bus *Bus, store Store, expander Expander) *Queue {
	return &Queue{
		jobs:     make(map[string]*Job),
		bus:      bus,
		store:    store,
		expander: expander,
		cfg:      cfg,
	}
}

// SetSubmitter wires the worker pool in. Must be called before Add.
func (q *Queue) SetSubmitter(s Submitter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submit = s
}

// Add expands the given reference and enqueues one job per resolved URL,
// returning snapshots of the created jobs in order. When expansion fails the
// reference is treated as a single video URL rather than rejecting the
// request.
func (q *Queue) Add(ctx context.Context, ref string, spec Spec) ([]*Job, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}

	urls := []string{ref}
	if spec.Kind != KindInstall && q.expander != nil {
		expanded, err := q.expander.Expand(ctx, ref)
		if err != nil || len(expanded) == 0 {
			logger.Warn("playlist expansion failed, treating as single item", "url", ref, "error", err)
		} else {
			urls = expanded
		}
	}

	jobs := make([]*Job, 0, len(urls))
	for _, u := range urls {
		s := spec
		s.URL = u
		q.applyDefaults(&s)
		job := NewJob(s)

		q.mu.Lock()
		q.jobs[job.ID] = job
		q.order = append(q.order, job.ID)
		submit := q.submit
		q.mu.Unlock()

		q.bus.Publish(Event{JobID: job.ID, Type: EventQueued, Job: job.Snapshot()})
		logger.Info("job queued", "id", job.ID, "kind", job.Kind, "url", job.URL)
		if submit != nil {
			submit.Submit(job)
		}
		jobs = append(jobs, job.Snapshot())
	}

	q.persistSnapshot()
	return jobs, nil
}

// applyDefaults fills unset spec fields from configuration.
func (q *Queue) applyDefaults(s *Spec) {
	if s.Kind == "" {
		s.Kind = KindVideo
	}
	if s.DestDir == "" {
		s.DestDir = q.cfg.DestDir(string(s.Kind))
	}
	if s.Container == "" {
		s.Container = q.cfg.DefaultContainer
	}
	if s.Kind == KindAudio && s.AudioQuality <= 0 {
		s.AudioQuality = q.cfg.DefaultAudioQuality
	}
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return nil, jobNotFoundError(id)
	}
	return job.Snapshot(), nil
}

// List returns snapshots of all known jobs in submission order.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	ids := make([]string, len(q.order))
	copy(ids, q.order)
	jobsByID := q.jobs
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := jobsByID[id]; ok {
			out = append(out, j.Snapshot())
		}
	}
	q.mu.Unlock()
	return out
}

// Completed returns the display records of finished jobs, oldest first.
func (q *Queue) Completed() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.completed))
	copy(out, q.completed)
	return out
}

// Pause closes a job's pause gate. Terminal jobs cannot be paused.
func (q *Queue) Pause(id string) error {
	job, err := q.lookup(id)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return jobTerminalError(id, job.Snapshot().Status)
	}
	job.Pause()
	q.bus.Publish(Event{JobID: id, Type: EventStatus, Job: job.Snapshot()})
	logger.Info("job paused", "id", id)
	return nil
}

// Resume reopens a job's pause gate.
func (q *Queue) Resume(id string) error {
	job, err := q.lookup(id)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return jobTerminalError(id, job.Snapshot().Status)
	}
	job.Resume()
	q.bus.Publish(Event{JobID: id, Type: EventStatus, Job: job.Snapshot()})
	logger.Info("job resumed", "id", id)
	return nil
}

// Cancel requests cooperative cancellation. The job reaches its terminal
// state when the execution observes the flag; a queued job that was never
// dispatched is finished by the pool when its turn comes.
func (q *Queue) Cancel(id string) error {
	job, err := q.lookup(id)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return jobTerminalError(id, job.Snapshot().Status)
	}
	job.Cancel()
	q.bus.Publish(Event{JobID: id, Type: EventStatus, Job: job.Snapshot()})
	logger.Info("job cancel requested", "id", id)
	return nil
}

// Remove drops a job from the queue's view regardless of state. A still
// running execution is orphaned: every later report for the ID is dropped
// silently because the lookup no longer finds it.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	_, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return jobNotFoundError(id)
	}
	delete(q.jobs, id)
	q.removeFromOrder(id)
	q.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: EventRemoved})
	q.persistSnapshot()
	return nil
}

// PauseAll pauses every non-terminal job.
func (q *Queue) PauseAll() {
	for _, id := range q.ids() {
		if err := q.Pause(id); err != nil {
			logger.Debug("pause all skipped job", "id", id, "error", err)
		}
	}
}

// ResumeAll resumes every non-terminal job.
func (q *Queue) ResumeAll() {
	for _, id := range q.ids() {
		if err := q.Resume(id); err != nil {
			logger.Debug("resume all skipped job", "id", id, "error", err)
		}
	}
}

// CancelSet requests cancellation for each listed job and reports per-job
// outcomes. One bad ID never aborts the rest.
func (q *Queue) CancelSet(ids []string) map[string]error {
	out := make(map[string]error, len(ids))
	for _, id := range ids {
		out[id] = q.Cancel(id)
	}
	return out
}

// CancelAll requests cancellation for every non-terminal job.
func (q *Queue) CancelAll() {
	for _, id := range q.ids() {
		if err := q.Cancel(id); err != nil {
			logger.Debug("cancel all skipped job", "id", id, "error", err)
		}
	}
}

// StartJob marks a job as running. Called by the pool when a slot is taken.
// A job paused while still queued keeps its "Paused" text; the executor sits
// at the first checkpoint until resumed.
func (q *Queue) StartJob(id string) {
	q.mutate(id, func(j *Job) {
		j.Status = StatusRunning
		if !j.paused {
			j.StatusText = "Downloading..."
		}
		j.StartedAt = time.Now()
	}, EventStatus)
}

// SetTitle records the resolved title.
func (q *Queue) SetTitle(id, title string) {
	q.mutate(id, func(j *Job) {
		j.Title = title
	}, EventMetadata)
}

// SetStatusText updates the human-readable status line. Paused jobs keep
// their "Paused" text so executor reports queued up behind the gate do not
// overwrite it.
func (q *Queue) SetStatusText(id, text string) {
	q.mutate(id, func(j *Job) {
		if j.paused {
			return
		}
		j.StatusText = text
	}, EventStatus)
}

// UpdateProgress records overall progress for a running job. Progress never
// decreases; reports for unknown or terminal jobs are dropped silently since
// a late report after completion is expected, not an error.
func (q *Queue) UpdateProgress(id string, overall float64, speed, eta string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	job.mu.Lock()
	if job.isTerminalLocked() {
		job.mu.Unlock()
		return
	}
	if overall > job.Progress {
		job.Progress = overall
	}
	job.Speed = speed
	job.ETA = eta
	job.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: EventProgress, Job: job.Snapshot()})
}

// CompleteJob moves a job to its completed terminal state and appends a
// display record.
func (q *Queue) CompleteJob(id, outputPath, title string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	job.mu.Lock()
	job.Status = StatusCompleted
	job.StatusText = "Completed"
	job.Progress = 100
	job.Speed = ""
	job.ETA = ""
	if title != "" {
		job.Title = title
	}
	job.OutputPath = outputPath
	job.CompletedAt = time.Now()
	label := job.Title
	if label == "" {
		label = job.URL
	}
	if outputPath != "" {
		label = fmt.Sprintf("%s (%s)", label, outputPath)
	}
	job.mu.Unlock()

	q.mu.Lock()
	q.completed = append(q.completed, label)
	q.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: EventCompleted, Job: job.Snapshot()})
	logger.Info("job completed", "id", id, "output", outputPath)
	q.persistSnapshot()
}

// FailJob moves a job to its failed terminal state.
func (q *Queue) FailJob(id string, jobErr error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	job.mu.Lock()
	job.Status = StatusFailed
	job.StatusText = "Failed"
	job.Speed = ""
	job.ETA = ""
	if jobErr != nil {
		job.Error = jobErr.Error()
	}
	job.CompletedAt = time.Now()
	job.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: EventError, Job: job.Snapshot(), Message: job.Snapshot().Error})
	logger.Error("job failed", "id", id, "error", jobErr)
	q.persistSnapshot()
}

// FinishCancelled moves a cancel-requested job to its cancelled terminal
// state. Called by the pool once the execution has actually stopped, or when
// a never-dispatched job's turn comes up.
func (q *Queue) FinishCancelled(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	job.mu.Lock()
	job.Status = StatusCancelled
	job.StatusText = "Cancelled"
	job.Speed = ""
	job.ETA = ""
	job.CompletedAt = time.Now()
	job.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: EventStatus, Job: job.Snapshot()})
	logger.Info("job cancelled", "id", id)
	q.persistSnapshot()
}

// Stats summarizes queue occupancy by status.
type Stats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// GetStats counts jobs by status.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, job := range q.jobs {
		s.Total++
		switch job.Snapshot().Status {
		case StatusQueued:
			s.Queued++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// NotifyResized broadcasts a worker-limit change to observers.
func (q *Queue) NotifyResized(workers int) {
	q.bus.Publish(Event{Type: EventResized, Message: strconv.Itoa(workers)})
}

// Subscribe registers an event channel for queue broadcasts.
func (q *Queue) Subscribe() chan Event {
	return q.bus.Subscribe()
}

// Unsubscribe removes and closes a subscriber channel.
func (q *Queue) Unsubscribe(ch chan Event) {
	q.bus.Unsubscribe(ch)
}

// lookup fetches a live job pointer by ID.
func (q *Queue) lookup(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, jobNotFoundError(id)
	}
	return job, nil
}

// ids returns the current submission order.
func (q *Queue) ids() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out
}

// mutate applies fn under the job's lock and broadcasts the result. Unknown
// and terminal jobs are skipped.
func (q *Queue) mutate(id string, fn func(*Job), evt EventType) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	job.mu.Lock()
	if job.isTerminalLocked() {
		job.mu.Unlock()
		return
	}
	fn(job)
	job.mu.Unlock()

	q.bus.Publish(Event{JobID: id, Type: evt, Job: job.Snapshot()})
}

// removeFromOrder drops an ID from the submission order. Caller holds q.mu.
func (q *Queue) removeFromOrder(id string) {
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}
