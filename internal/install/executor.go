package install

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/downvid/downvid/internal/format"
	"github.com/downvid/downvid/internal/jobs"
	"github.com/downvid/downvid/internal/logger"
)

// Stage names reported by the install executor, in execution order.
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StageLocate   = "locate"
)

// Executor provisions a tool under DestDir by downloading an archive,
// unpacking it, and locating the binary inside. It implements
// jobs.Executor for install jobs.
type Executor struct {
	cap         Capability
	fallbackURL string
	binaryName  string
}

// NewExecutor creates an install executor. fallbackURL is tried once when
// the primary archive download fails; binaryName is the executable to find
// after extraction (e.g. "ffmpeg").
func NewExecutor(cap Capability, fallbackURL, binaryName string) *Executor {
	return &Executor{cap: cap, fallbackURL: fallbackURL, binaryName: binaryName}
}

// Run drives the three install stages. Extraction goes to a staging
// directory that is promoted into place only after it succeeds, so a failed
// or cancelled install never leaves a half-written tool directory.
func (e *Executor) Run(ctx context.Context, job *jobs.Job, sink jobs.Sink) (*jobs.Outcome, error) {
	spec := job.Snapshot().Spec

	if err := job.Checkpoint(); err != nil {
		return nil, err
	}
	sink.StatusText("Downloading...")

	archive, err := e.download(ctx, job, sink, spec.URL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(archive)

	if err := job.Checkpoint(); err != nil {
		return nil, err
	}
	sink.StatusText("Processing...")
	sink.StageProgress(StageExtract, 0, "", "")

	parent := filepath.Dir(spec.DestDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(parent, ".install-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	err = e.cap.ExtractArchive(archive, staging, func(done, total int64) error {
		if err := job.Checkpoint(); err != nil {
			return err
		}
		sink.StageProgress(StageExtract, fraction(done, total), "", "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	sink.StageProgress(StageExtract, 100, "", "")

	if err := job.Checkpoint(); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(spec.DestDir); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, spec.DestDir); err != nil {
		return nil, fmt.Errorf("failed to move install into place: %w", err)
	}

	sink.StageProgress(StageLocate, 0, "", "")
	bin, err := e.cap.LocateBinary(spec.DestDir, e.binaryName)
	if err != nil {
		return nil, err
	}
	sink.StageProgress(StageLocate, 100, "", "")

	logger.Info("tool installed", "binary", bin)
	return &jobs.Outcome{OutputPath: bin, Title: e.binaryName + " install"}, nil
}

// download fetches the archive, retrying once on the fallback URL. A
// cancelled download is never retried.
func (e *Executor) download(ctx context.Context, job *jobs.Job, sink jobs.Sink, url string) (string, error) {
	meter := format.NewSpeedMeter()
	var last int64
	fn := func(done, total int64) error {
		if err := job.Checkpoint(); err != nil {
			return err
		}
		if done > last {
			meter.Add(done - last)
			last = done
		}
		rate := meter.Rate()
		eta := format.UnknownETA
		if total > 0 {
			eta = format.ETA(total-done, rate)
		}
		sink.StageProgress(StageDownload, fraction(done, total), format.Speed(rate), eta)
		return nil
	}

	archive, err := e.cap.DownloadArchive(ctx, url, fn)
	if err == nil {
		sink.StageProgress(StageDownload, 100, "", "")
		return archive, nil
	}
	if errors.Is(err, jobs.ErrCancelled) || ctx.Err() != nil || e.fallbackURL == "" || e.fallbackURL == url {
		return "", err
	}

	logger.Warn("primary archive download failed, trying fallback", "error", err, "fallback", e.fallbackURL)
	last = 0
	meter = format.NewSpeedMeter()
	archive, err = e.cap.DownloadArchive(ctx, e.fallbackURL, fn)
	if err != nil {
		return "", err
	}
	sink.StageProgress(StageDownload, 100, "", "")
	return archive, nil
}

// fraction maps a byte count to stage-local progress, capped below 100
// while the total is unknown.
func fraction(done, total int64) float64 {
	if total > 0 {
		return math.Min(99, 100*float64(done)/float64(total))
	}
	const scale = 8 << 20
	return math.Min(99, 100*float64(done)/float64(done+scale))
}
