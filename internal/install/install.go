// Package install fetches and unpacks tool archives, used to provision an
// ffmpeg binary when none is on the PATH.
package install

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/downvid/downvid/internal/logger"
)

// chunkSize is the copy granularity for downloads and extraction, chosen so
// progress callbacks (and with them pause and cancel) fire often enough.
const chunkSize = 256 * 1024

// ProgressFunc receives byte counts as work proceeds. Total is -1 when
// unknown. Returning an error aborts the operation.
type ProgressFunc func(done, total int64) error

// Capability is the install surface the executor drives. HTTPInstaller is
// the real implementation; tests swap in doubles.
type Capability interface {
	// DownloadArchive fetches the archive at url into a temporary file and
	// returns its path. The caller removes the file when done.
	DownloadArchive(ctx context.Context, url string, fn ProgressFunc) (string, error)

	// ExtractArchive unpacks a zip archive under destDir. Any entry whose
	// path would escape destDir aborts the whole extraction.
	ExtractArchive(archive, destDir string, fn ProgressFunc) error

	// LocateBinary finds the named executable under root.
	LocateBinary(root, name string) (string, error)
}

// HTTPInstaller downloads archives over HTTP and unpacks zip files.
type HTTPInstaller struct {
	client *http.Client
}

// NewHTTPInstaller creates an installer using the given HTTP client, or
// http.DefaultClient when nil.
func NewHTTPInstaller(client *http.Client) *HTTPInstaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInstaller{client: client}
}

// DownloadArchive streams the archive to a temporary file in fixed-size
// chunks, reporting progress after each one.
func (h *HTTPInstaller) DownloadArchive(ctx context.Context, url string, fn ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}
	total := resp.ContentLength // -1 when the server didn't say

	tmp, err := os.CreateTemp("", "downvid-archive-*.zip")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	var done int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				os.Remove(tmp.Name())
				return "", err
			}
			done += int64(n)
			if fn != nil {
				if err := fn(done, total); err != nil {
					os.Remove(tmp.Name())
					return "", err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("download interrupted: %w", readErr)
		}
	}

	logger.Debug("archive downloaded", "url", url, "bytes", done, "path", tmp.Name())
	return tmp.Name(), nil
}

// ExtractArchive unpacks a zip under destDir. Entry paths are validated
// against destDir before anything is written: one escaping entry fails the
// whole archive, leaving nothing outside destDir.
func (h *HTTPInstaller) ExtractArchive(archive, destDir string, fn ProgressFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var total int64
	for _, f := range r.File {
		total += int64(f.UncompressedSize64)
	}

	for _, f := range r.File {
		if _, err := safeJoin(destDir, f.Name); err != nil {
			return err
		}
	}

	var done int64
	for _, f := range r.File {
		target, _ := safeJoin(destDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			// Symlinks and devices in a tool archive are not expected;
			// skip rather than materialize them.
			logger.Warn("skipping non-regular archive entry", "name", f.Name)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		n, err := extractFile(f, target, done, total, fn)
		if err != nil {
			return err
		}
		done += n
	}
	return nil
}

// extractFile writes one archive entry, reporting progress per chunk.
func extractFile(f *zip.File, target string, base, total int64, fn ProgressFunc) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if fn != nil {
				if err := fn(base+written, total); err != nil {
					return written, err
				}
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// LocateBinary walks root looking for the named executable (name or
// name.exe).
func (h *HTTPInstaller) LocateBinary(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == name || base == name+".exe" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%s not found under %s", name, root)
	}
	return found, nil
}

// safeJoin resolves an archive entry name under dest, rejecting entries
// that would land outside it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}
