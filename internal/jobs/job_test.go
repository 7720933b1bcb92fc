package jobs

import (
	"errors"
	"testing"
	"time"
)

func newTestJob() *Job {
	return NewJob(Spec{URL: "https://example.com/watch?v=abc", Kind: KindVideo})
}

func TestNewJob(t *testing.T) {
	j := newTestJob()
	if j.ID == "" {
		t.Error("expected non-empty ID")
	}
	if j.Status != StatusQueued {
		t.Errorf("status = %s, want %s", j.Status, StatusQueued)
	}
	if j.StatusText != "Queued" {
		t.Errorf("status text = %q, want Queued", j.StatusText)
	}
	if j.IsPaused() || j.IsCancelled() {
		t.Error("new job must be neither paused nor cancelled")
	}

	other := newTestJob()
	if other.ID == j.ID {
		t.Error("two jobs got the same ID")
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	j := newTestJob()

	j.Pause()
	j.Pause()
	if !j.IsPaused() {
		t.Fatal("job should be paused")
	}
	if j.Snapshot().StatusText != "Paused" {
		t.Errorf("status text = %q, want Paused", j.Snapshot().StatusText)
	}

	j.Resume()
	j.Resume()
	if j.IsPaused() {
		t.Fatal("job should not be paused")
	}
	if j.Snapshot().StatusText != "Resuming..." {
		t.Errorf("status text = %q, want Resuming...", j.Snapshot().StatusText)
	}
}

func TestResumeWithoutPause(t *testing.T) {
	j := newTestJob()
	j.Resume() // must not panic or close a nil channel
	if j.IsPaused() {
		t.Error("job should not be paused")
	}
}

func TestCancelIsMonotonic(t *testing.T) {
	j := newTestJob()
	j.Cancel()
	j.Cancel()
	if !j.IsCancelled() {
		t.Fatal("job should be cancelled")
	}
	if j.Snapshot().StatusText != "Cancelling..." {
		t.Errorf("status text = %q, want Cancelling...", j.Snapshot().StatusText)
	}

	// Resume must not clear the cancel flag
	j.Resume()
	if !j.IsCancelled() {
		t.Error("resume cleared the cancel flag")
	}
}

func TestCheckpointPassesWhenRunning(t *testing.T) {
	j := newTestJob()
	if err := j.Checkpoint(); err != nil {
		t.Errorf("checkpoint on a running job returned %v", err)
	}
}

func TestCheckpointReturnsErrCancelled(t *testing.T) {
	j := newTestJob()
	j.Cancel()
	if err := j.Checkpoint(); !errors.Is(err, ErrCancelled) {
		t.Errorf("checkpoint = %v, want ErrCancelled", err)
	}
}

func TestCheckpointBlocksWhilePaused(t *testing.T) {
	j := newTestJob()
	j.Pause()

	done := make(chan error, 1)
	go func() {
		done <- j.Checkpoint()
	}()

	select {
	case err := <-done:
		t.Fatalf("checkpoint returned %v while paused", err)
	case <-time.After(50 * time.Millisecond):
	}

	j.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("checkpoint after resume = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not wake after resume")
	}
}

func TestCancelWakesPausedCheckpoint(t *testing.T) {
	j := newTestJob()
	j.Pause()

	done := make(chan error, 1)
	go func() {
		done <- j.Checkpoint()
	}()

	time.Sleep(20 * time.Millisecond)
	j.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("checkpoint = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not wake the paused checkpoint")
	}
}

func TestPauseRepausesAfterResumeRace(t *testing.T) {
	// pause -> resume -> pause again must leave the gate closed
	j := newTestJob()
	j.Pause()
	j.Resume()
	j.Pause()

	done := make(chan error, 1)
	go func() {
		done <- j.Checkpoint()
	}()

	select {
	case <-done:
		t.Fatal("checkpoint passed through a re-closed gate")
	case <-time.After(50 * time.Millisecond):
	}
	j.Cancel()
	<-done
}

func TestTerminalGuards(t *testing.T) {
	j := newTestJob()
	j.Status = StatusCompleted
	j.StatusText = "Completed"

	j.Pause()
	if j.IsPaused() {
		t.Error("terminal job was paused")
	}
	j.Cancel()
	if j.Snapshot().StatusText != "Completed" {
		t.Errorf("cancel rewrote terminal status text to %q", j.Snapshot().StatusText)
	}
	if !j.IsTerminal() {
		t.Error("completed job should be terminal")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	j := newTestJob()
	snap := j.Snapshot()
	snap.Status = StatusFailed
	if j.Snapshot().Status != StatusQueued {
		t.Error("mutating a snapshot leaked into the job")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"video", KindVideo},
		{"audio", KindAudio},
		{"install", KindInstall},
		{"", KindVideo},
		{"bogus", KindVideo},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
