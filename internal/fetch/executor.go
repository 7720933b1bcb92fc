package fetch

import (
	"context"
	"errors"
	"math"

	"github.com/downvid/downvid/internal/format"
	"github.com/downvid/downvid/internal/jobs"
	"github.com/downvid/downvid/internal/logger"
)

// Stage names reported by the media executor, in execution order.
const (
	StageResolve  = "resolve"
	StageTransfer = "transfer"
	StageConvert  = "convert"
)

// Executor runs video and audio jobs through a fetch client. It implements
// jobs.Executor.
type Executor struct {
	client Client
}

// NewExecutor creates a media executor over the given client.
func NewExecutor(client Client) *Executor {
	return &Executor{client: client}
}

// Run resolves, transfers and converts one media item. The job's checkpoint
// is consulted before each stage and on every progress report, so pause
// blocks mid-transfer and cancel stops the external process.
func (e *Executor) Run(ctx context.Context, job *jobs.Job, sink jobs.Sink) (*jobs.Outcome, error) {
	spec := job.Snapshot().Spec

	if err := job.Checkpoint(); err != nil {
		return nil, err
	}
	sink.StageProgress(StageResolve, 0, "", "")
	title := spec.URL
	meta, err := e.client.ResolveMetadata(ctx, spec.URL)
	if err != nil {
		// Resolution only supplies the display title; the transfer decides
		// for itself whether the item is fetchable.
		logger.Warn("metadata resolution failed, using url as title", "url", spec.URL, "error", err)
	} else {
		title = meta.Title
	}
	sink.Metadata(title)
	sink.StageProgress(StageResolve, 100, "", "")

	if err := job.Checkpoint(); err != nil {
		return nil, err
	}
	sink.StatusText("Downloading...")

	meter := format.NewSpeedMeter()
	var lastDownloaded int64
	converting := false

	out, err := e.client.Fetch(ctx, spec.URL, Options{
		DestDir:       spec.DestDir,
		QualityHeight: spec.QualityHeight,
		AudioQuality:  spec.AudioQuality,
		SubsLangs:     spec.SubsLangs,
		EmbedSubs:     spec.EmbedSubs,
		Container:     spec.Container,
		Audio:         spec.Kind == jobs.KindAudio,
	}, func(p Progress) error {
		if err := job.Checkpoint(); err != nil {
			return err
		}

		if p.PostProcessing {
			if !converting {
				converting = true
				sink.StageProgress(StageTransfer, 100, "", "")
				sink.StatusText("Processing...")
				sink.StageProgress(StageConvert, 0, "", "")
			}
			return nil
		}

		if p.Downloaded > lastDownloaded {
			meter.Add(p.Downloaded - lastDownloaded)
			lastDownloaded = p.Downloaded
		}
		rate := meter.Rate()

		frac := transferFraction(p)
		eta := format.UnknownETA
		if p.Total > 0 {
			eta = format.ETA(p.Total-p.Downloaded, rate)
		}
		sink.StageProgress(StageTransfer, frac, format.Speed(rate), eta)
		return nil
	})
	if err != nil {
		if errors.Is(err, jobs.ErrCancelled) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	sink.StageProgress(StageTransfer, 100, "", "")
	sink.StageProgress(StageConvert, 100, "", "")
	return &jobs.Outcome{OutputPath: out.Path, Title: title}, nil
}

// transferFraction maps a transfer report to stage-local progress. With an
// unknown total the fraction approaches but never reaches 99, so the bar
// keeps moving without claiming completion.
func transferFraction(p Progress) float64 {
	if p.Total > 0 {
		return math.Min(99, 100*float64(p.Downloaded)/float64(p.Total))
	}
	const scale = 8 << 20
	return math.Min(99, 100*float64(p.Downloaded)/float64(p.Downloaded+scale))
}
