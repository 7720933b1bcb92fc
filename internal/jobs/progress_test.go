package jobs

import (
	"testing"

	"github.com/downvid/downvid/internal/config"
)

func installWeights() StageWeights {
	return NewStageWeights([]config.StageWeight{
		{Stage: "download", Weight: 60},
		{Stage: "extract", Weight: 30},
		{Stage: "locate", Weight: 10},
	}, config.DefaultInstallStages())
}

func TestStageWeightsOverall(t *testing.T) {
	w := installWeights()

	tests := []struct {
		stage string
		frac  float64
		want  float64
	}{
		{"download", 0, 0},
		{"download", 50, 30},
		{"download", 100, 60},
		{"extract", 0, 60},
		{"extract", 50, 75},
		{"extract", 100, 90},
		{"locate", 100, 100},
	}
	for _, tt := range tests {
		if got := w.Overall(tt.stage, tt.frac); got != tt.want {
			t.Errorf("Overall(%s, %v) = %v, want %v", tt.stage, tt.frac, got, tt.want)
		}
	}
}

func TestStageWeightsClampsFraction(t *testing.T) {
	w := installWeights()
	if got := w.Overall("download", 150); got != 60 {
		t.Errorf("Overall(download, 150) = %v, want 60", got)
	}
	if got := w.Overall("download", -10); got != 0 {
		t.Errorf("Overall(download, -10) = %v, want 0", got)
	}
}

func TestStageWeightsUnknownStage(t *testing.T) {
	w := installWeights()
	if got := w.Overall("transcode", 50); got != -1 {
		t.Errorf("Overall(transcode, 50) = %v, want -1", got)
	}
}

func TestStageWeightsInvalidTableFallsBack(t *testing.T) {
	w := NewStageWeights([]config.StageWeight{{Stage: "only", Weight: 50}}, config.DefaultMediaStages())
	// Media defaults: resolve 5, transfer 85, convert 10
	if got := w.Overall("transfer", 100); got != 90 {
		t.Errorf("Overall(transfer, 100) = %v, want 90 from fallback table", got)
	}
}

func TestStageWeightsInvalidInstallTableKeepsInstallStages(t *testing.T) {
	w := NewStageWeights([]config.StageWeight{{Stage: "download", Weight: 40}}, config.DefaultInstallStages())
	if got := w.Overall("download", 100); got != 60 {
		t.Errorf("Overall(download, 100) = %v, want 60 from fallback table", got)
	}
	if got := w.Overall("extract", 0); got != 60 {
		t.Errorf("Overall(extract, 0) = %v, want 60 from fallback table", got)
	}
	if got := w.Overall("locate", 100); got != 100 {
		t.Errorf("Overall(locate, 100) = %v, want 100 from fallback table", got)
	}
}

func TestTrackerMonotonic(t *testing.T) {
	tr := NewTracker(installWeights())

	if got := tr.Update("download", 50); got != 30 {
		t.Fatalf("first update = %v, want 30", got)
	}
	// A stage-local regression must not move overall progress backward
	if got := tr.Update("download", 10); got != 30 {
		t.Errorf("regressed update = %v, want 30", got)
	}
	// An unknown stage is ignored
	if got := tr.Update("bogus", 99); got != 30 {
		t.Errorf("unknown stage moved progress to %v", got)
	}
	// A later stage still advances it
	if got := tr.Update("extract", 50); got != 75 {
		t.Errorf("extract update = %v, want 75", got)
	}
}
