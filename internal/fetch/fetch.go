// Package fetch resolves and downloads media via an external yt-dlp binary.
package fetch

import "context"

// Metadata is the resolved identity of a single media item.
type Metadata struct {
	ID    string
	Title string
}

// Options shape a single download.
type Options struct {
	DestDir       string
	QualityHeight int // 0 = best available
	AudioQuality  int // kbps, audio only
	SubsLangs     []string
	EmbedSubs     bool
	Container     string // "mp4" or "mkv"
	Audio         bool   // extract audio instead of video
}

// Progress is one transfer report. Total is -1 while the total size is
// unknown. PostProcessing is set once the transfer finished and yt-dlp is
// merging or converting the result.
type Progress struct {
	Downloaded     int64
	Total          int64
	PostProcessing bool
}

// ProgressFunc receives transfer reports. Returning an error stops the
// download; the error is propagated out of Fetch.
type ProgressFunc func(Progress) error

// Output describes a finished download.
type Output struct {
	Path string
}

// Client resolves and fetches media. Implemented by YTDLP; test doubles
// implement it in-process.
type Client interface {
	// ResolveMetadata fetches the title of a single item without downloading.
	ResolveMetadata(ctx context.Context, url string) (*Metadata, error)

	// Expand resolves a URL that may be a playlist into its entry URLs.
	// A plain video URL expands to itself.
	Expand(ctx context.Context, url string) ([]string, error)

	// Fetch downloads one item, reporting progress through fn.
	Fetch(ctx context.Context, url string, opts Options, fn ProgressFunc) (*Output, error)
}
