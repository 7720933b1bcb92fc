package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/downvid/downvid/internal/config"
	"github.com/downvid/downvid/internal/logger"
)

// WorkerPool dispatches queued jobs to per-kind executors, never running
// more than its concurrency limit at once. The limit is a dispatch gate,
// not a fixed set of goroutines: shrinking it below the number of running
// jobs never interrupts them, it only delays future dispatches until
// enough finish.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Job
	limit   int
	running int
	closed  bool

	queue     *Queue
	executors map[Kind]Executor
	weights   map[Kind]StageWeights

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool over the given queue. Executors are fixed at
// construction; the concurrency limit can change at runtime via Resize.
func NewWorkerPool(queue *Queue, executors map[Kind]Executor, cfg *config.Config) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		pending:   make([]*Job, 0),
		limit:     ClampWorkerCount(cfg.Workers),
		queue:     queue,
		executors: executors,
		weights: map[Kind]StageWeights{
			KindVideo:   NewStageWeights(cfg.MediaStages, config.DefaultMediaStages()),
			KindAudio:   NewStageWeights(cfg.MediaStages, config.DefaultMediaStages()),
			KindInstall: NewStageWeights(cfg.InstallStages, config.DefaultInstallStages()),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the dispatch loop.
func (p *WorkerPool) Start() {
	p.wg.Add(1)
	go p.dispatch()
	logger.Info("worker pool started", "workers", p.Limit())
}

// Submit enqueues a job for dispatch. Jobs run in submission order as slots
// free up.
func (p *WorkerPool) Submit(job *Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = append(p.pending, job)
	p.cond.Signal()
}

// Resize changes the concurrency limit. Values are clamped to the allowed
// range; raising the limit wakes the dispatcher so waiting jobs start
// immediately, lowering it leaves running jobs untouched.
func (p *WorkerPool) Resize(n int) int {
	n = ClampWorkerCount(n)
	p.mu.Lock()
	old := p.limit
	p.limit = n
	p.mu.Unlock()
	if n != old {
		p.cond.Signal()
		logger.Info("worker pool resized", "from", old, "to", n)
	}
	return n
}

// Limit returns the current concurrency limit.
func (p *WorkerPool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Running returns the number of currently executing jobs.
func (p *WorkerPool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop shuts the pool down: no further dispatches happen and running
// executions see a cancelled context. Blocks until they return. Job
// statuses are left as they are so a restart can restore them as queued.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.cond.Broadcast()
	p.wg.Wait()
	logger.Info("worker pool stopped")
}

// dispatch hands pending jobs to runner goroutines while slots are free.
func (p *WorkerPool) dispatch() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for !p.closed && (len(p.pending) == 0 || p.running >= p.limit) {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		job := p.pending[0]
		p.pending = p.pending[1:]

		// Jobs cancelled before their turn finish without taking a slot.
		if job.IsCancelled() {
			p.mu.Unlock()
			p.queue.FinishCancelled(job.ID)
			continue
		}

		p.running++
		p.mu.Unlock()

		p.wg.Add(1)
		go func(j *Job) {
			defer p.wg.Done()
			p.runJob(j)
			p.mu.Lock()
			p.running--
			p.mu.Unlock()
			p.cond.Signal()
		}(job)
	}
}

// runJob executes one job through its kind's executor and settles its
// terminal state.
func (p *WorkerPool) runJob(job *Job) {
	exec, ok := p.executors[job.Kind]
	if !ok {
		p.queue.FailJob(job.ID, errors.New("no executor for kind "+string(job.Kind)))
		return
	}

	p.queue.StartJob(job.ID)
	logger.Debug("job dispatched", "id", job.ID, "kind", job.Kind)

	sink := &poolSink{
		queue:   p.queue,
		jobID:   job.ID,
		tracker: NewTracker(p.weights[job.Kind]),
	}
	outcome, err := exec.Run(p.ctx, job, sink)

	switch {
	case err == nil:
		var path, title string
		if outcome != nil {
			path, title = outcome.OutputPath, outcome.Title
		}
		if path == "" {
			logger.Warn("job finished without an output path", "id", job.ID)
		}
		p.queue.CompleteJob(job.ID, path, title)
	case errors.Is(err, ErrCancelled):
		p.queue.FinishCancelled(job.ID)
	case p.ctx.Err() != nil:
		// Shutdown interrupted the execution. Leave the status alone so
		// the persisted snapshot restores this job as pending.
		logger.Info("job interrupted by shutdown", "id", job.ID)
	default:
		p.queue.FailJob(job.ID, err)
	}
}

// poolSink folds executor reports into queue state. One per running job.
type poolSink struct {
	queue   *Queue
	jobID   string
	tracker *Tracker
}

func (s *poolSink) StageProgress(stage string, fraction float64, speed, eta string) {
	overall := s.tracker.Update(stage, fraction)
	s.queue.UpdateProgress(s.jobID, overall, speed, eta)
}

func (s *poolSink) Metadata(title string) {
	s.queue.SetTitle(s.jobID, title)
}

func (s *poolSink) StatusText(text string) {
	s.queue.SetStatusText(s.jobID, text)
}
