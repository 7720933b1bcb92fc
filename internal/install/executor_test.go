package install

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/downvid/downvid/internal/jobs"
)

// fakeCapability scripts each install step.
type fakeCapability struct {
	downloads   []string // URLs attempted, in order
	failFirst   bool
	downloadErr error
	archivePath string
	binaryName  string
}

func (f *fakeCapability) DownloadArchive(ctx context.Context, url string, fn ProgressFunc) (string, error) {
	f.downloads = append(f.downloads, url)
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	if f.failFirst && len(f.downloads) == 1 {
		return "", errors.New("primary mirror down")
	}
	if fn != nil {
		if err := fn(512, 1024); err != nil {
			return "", err
		}
	}
	// Hand out a copy since the executor removes the archive when done
	copyPath := filepath.Join(os.TempDir(), "fake-archive.zip")
	data, err := os.ReadFile(f.archivePath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(copyPath, data, 0644); err != nil {
		return "", err
	}
	return copyPath, nil
}

func (f *fakeCapability) ExtractArchive(archive, destDir string, fn ProgressFunc) error {
	real := NewHTTPInstaller(nil)
	return real.ExtractArchive(archive, destDir, fn)
}

func (f *fakeCapability) LocateBinary(root, name string) (string, error) {
	real := NewHTTPInstaller(nil)
	return real.LocateBinary(root, name)
}

type nopSink struct{}

func (nopSink) StageProgress(string, float64, string, string) {}
func (nopSink) Metadata(string)                               {}
func (nopSink) StatusText(string)                             {}

func newInstallJob(destDir string) *jobs.Job {
	return jobs.NewJob(jobs.Spec{
		URL:     "https://mirror.test/ffmpeg.zip",
		Kind:    jobs.KindInstall,
		DestDir: destDir,
	})
}

func TestInstallExecutorRun(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"ffmpeg-7.0/bin/ffmpeg": "elf bits",
	})
	cap := &fakeCapability{archivePath: archive}
	dest := filepath.Join(t.TempDir(), "tools", "ffmpeg")
	exec := NewExecutor(cap, "https://fallback.test/ffmpeg.zip", "ffmpeg")

	outcome, err := exec.Run(context.Background(), newInstallJob(dest), nopSink{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(dest, "ffmpeg-7.0", "bin", "ffmpeg")
	if outcome.OutputPath != want {
		t.Errorf("output = %q, want %q", outcome.OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("installed binary missing: %v", err)
	}
	if len(cap.downloads) != 1 {
		t.Errorf("downloads attempted: %v", cap.downloads)
	}
}

func TestInstallExecutorFallsBackOnce(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"ffmpeg/bin/ffmpeg": "elf bits",
	})
	cap := &fakeCapability{archivePath: archive, failFirst: true}
	dest := filepath.Join(t.TempDir(), "ffmpeg")
	exec := NewExecutor(cap, "https://fallback.test/ffmpeg.zip", "ffmpeg")

	if _, err := exec.Run(context.Background(), newInstallJob(dest), nopSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cap.downloads) != 2 || cap.downloads[1] != "https://fallback.test/ffmpeg.zip" {
		t.Errorf("downloads attempted: %v", cap.downloads)
	}
}

func TestInstallExecutorNoFallbackAfterCancel(t *testing.T) {
	cap := &fakeCapability{downloadErr: jobs.ErrCancelled}
	dest := filepath.Join(t.TempDir(), "ffmpeg")
	exec := NewExecutor(cap, "https://fallback.test/ffmpeg.zip", "ffmpeg")

	_, err := exec.Run(context.Background(), newInstallJob(dest), nopSink{})
	if !errors.Is(err, jobs.ErrCancelled) {
		t.Fatalf("Run = %v, want ErrCancelled", err)
	}
	if len(cap.downloads) != 1 {
		t.Errorf("cancelled download retried: %v", cap.downloads)
	}
}

func TestInstallExecutorFailedExtractLeavesNoDest(t *testing.T) {
	// An archive without the binary still extracts, but locate fails and
	// the destination keeps whatever extraction promoted. An archive that
	// fails extraction must leave no destination at all.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("../evil.txt")
	w.Write([]byte("x"))
	zw.Close()
	badArchive := filepath.Join(t.TempDir(), "bad.zip")
	os.WriteFile(badArchive, buf.Bytes(), 0644)

	cap := &fakeCapability{archivePath: badArchive}
	dest := filepath.Join(t.TempDir(), "ffmpeg")
	exec := NewExecutor(cap, "", "ffmpeg")

	if _, err := exec.Run(context.Background(), newInstallJob(dest), nopSink{}); err == nil {
		t.Fatal("expected extraction error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failed install left a destination directory behind")
	}
}
