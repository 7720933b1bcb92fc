package jobs

import "github.com/downvid/downvid/internal/config"

// StageWeights maps stage-local progress into overall job progress using
// fixed per-stage weights summing to 100. Stage order matters: a stage's
// contribution starts where the previous stages' weights end, so overall
// progress stays monotonic across stage boundaries.
type StageWeights struct {
	stages []config.StageWeight
}

// NewStageWeights builds a weight table from configuration. Invalid tables
// (empty, non-positive weight, sum != 100) fall back to the given defaults,
// which must name the same stages the job kind reports.
func NewStageWeights(ws, fallback []config.StageWeight) StageWeights {
	if !stagesValid(ws) {
		ws = fallback
	}
	return StageWeights{stages: ws}
}

func stagesValid(ws []config.StageWeight) bool {
	var sum float64
	for _, w := range ws {
		if w.Stage == "" || w.Weight <= 0 {
			return false
		}
		sum += w.Weight
	}
	return sum == 100
}

// Overall converts a stage-local fraction in [0,100] into overall progress.
// Unknown stages return -1 so callers can ignore stray reports.
func (w StageWeights) Overall(stage string, fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 100 {
		fraction = 100
	}

	var before float64
	for _, s := range w.stages {
		if s.Stage == stage {
			return before + fraction/100*s.Weight
		}
		before += s.Weight
	}
	return -1
}

// Tracker keeps the highest overall progress seen for one running job, so
// reported progress never regresses even when a stage restarts its local
// counter.
type Tracker struct {
	weights StageWeights
	overall float64
}

// NewTracker creates a tracker starting at zero overall progress.
func NewTracker(weights StageWeights) *Tracker {
	return &Tracker{weights: weights}
}

// Update folds one stage-local report into overall progress. It returns the
// current overall value; reports that would move progress backward (or name
// an unknown stage) leave it unchanged.
func (t *Tracker) Update(stage string, fraction float64) float64 {
	overall := t.weights.Overall(stage, fraction)
	if overall > t.overall {
		t.overall = overall
	}
	return t.overall
}
