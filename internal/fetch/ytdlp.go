package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/downvid/downvid/internal/logger"
)

// YTDLP drives an external yt-dlp binary.
type YTDLP struct {
	// Path is the yt-dlp binary ("yt-dlp" resolves via PATH).
	Path string

	// FFmpegPath, when set, is handed to yt-dlp for merge and convert steps.
	FFmpegPath string
}

// NewYTDLP creates a client over the given binary paths.
func NewYTDLP(path, ffmpegPath string) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLP{Path: path, FFmpegPath: ffmpegPath}
}

// ResolveMetadata fetches the metadata of a single item without downloading.
func (y *YTDLP) ResolveMetadata(ctx context.Context, url string) (*Metadata, error) {
	out, err := y.run(ctx, "-j", "--no-playlist", url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", url, err)
	}

	var info struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", url, err)
	}
	return &Metadata{ID: info.ID, Title: info.Title}, nil
}

// Expand resolves a URL into its playlist entries without downloading
// anything. A plain video URL expands to itself.
func (y *YTDLP) Expand(ctx context.Context, url string) ([]string, error) {
	out, err := y.run(ctx, "-J", "--flat-playlist", url)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", url, err)
	}
	urls, err := parsePlaylist(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", url, err)
	}
	if len(urls) == 0 {
		urls = []string{url}
	}
	return urls, nil
}

// Fetch downloads one item. Progress lines on stdout are parsed and fed to
// fn; an error from fn kills the process and is returned as-is so callers
// can distinguish their own stop reason from a yt-dlp failure.
func (y *YTDLP) Fetch(ctx context.Context, url string, opts Options, fn ProgressFunc) (*Output, error) {
	args := y.fetchArgs(url, opts)
	logger.Debug("invoking yt-dlp", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, y.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var (
		outputPath string
		stopErr    error
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if prog, ok := parseProgressLine(line); ok {
			if fn != nil {
				if err := fn(prog); err != nil {
					stopErr = err
					_ = cmd.Process.Kill()
					break
				}
			}
			continue
		}
		if p := parsePrintedPath(line); p != "" {
			outputPath = p
		}
	}

	waitErr := cmd.Wait()
	if stopErr != nil {
		return nil, stopErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", waitErr, firstLine(stderr.String()))
	}
	if outputPath == "" {
		// The download succeeded even if the output path was not captured;
		// the job completes and downstream surfaces the missing path.
		logger.Warn("yt-dlp finished without reporting an output file", "url", url)
	}
	return &Output{Path: outputPath}, nil
}

// fetchArgs builds the download invocation for one item.
func (y *YTDLP) fetchArgs(url string, opts Options) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-overwrites",
		"--retries", "10",
		"--fragment-retries", "10",
		"--concurrent-fragments", "1",
		"-o", "%(title)s [%(id)s].%(ext)s",
		"--print", "after_move:filepath",
		"--no-simulate",
	}
	if opts.DestDir != "" {
		args = append(args, "-P", opts.DestDir)
	}
	if y.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.FFmpegPath)
	}

	if opts.Audio {
		args = append(args, "-x", "--audio-format", "mp3")
		if opts.AudioQuality > 0 {
			args = append(args, "--audio-quality", fmt.Sprintf("%dK", opts.AudioQuality))
		}
	} else {
		args = append(args, "-f", videoFormat(opts.QualityHeight))
		container := opts.Container
		if container == "" {
			container = "mp4"
		}
		args = append(args, "--merge-output-format", container)
	}

	if len(opts.SubsLangs) > 0 {
		args = append(args,
			"--write-subs",
			"--sub-langs", strings.Join(opts.SubsLangs, ","),
			"--sub-format", "srt/best",
		)
		if opts.EmbedSubs {
			args = append(args, "--embed-subs")
		}
	}

	return append(args, url)
}

// videoFormat builds the yt-dlp format selector for a quality ceiling.
// Zero means best available.
func videoFormat(height int) string {
	if height <= 0 {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"
	}
	return fmt.Sprintf(
		"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%d]+bestaudio/best[height<=%d]",
		height, height, height,
	)
}

// run executes yt-dlp and returns its stdout.
func (y *YTDLP) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, firstLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// firstLine trims stderr down to its first non-empty line for error text.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return "no error output"
}
