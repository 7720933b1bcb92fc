package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/downvid/downvid/internal/jobs"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot() *jobs.Snapshot {
	return &jobs.Snapshot{
		Version: jobs.SnapshotVersion,
		Queue: []jobs.SnapshotItem{
			{URL: "https://example.com/v1", Kind: "video", DestDir: "/vids", QualityHeight: 1080, SubsLangs: "en,de", EmbedSubs: true, Container: "mkv", Title: "First"},
			{URL: "https://example.com/a1", Kind: "audio", AudioQuality: 192},
		},
		Completed: []string{"First (/out/first.mp4)", "Second (/out/second.mp3)"},
		Defaults:  jobs.SnapshotDefaults{VideoDir: "/vids", AudioDir: "/audio"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSnapshot(testSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got.Queue) != 2 {
		t.Fatalf("loaded %d queue items, want 2", len(got.Queue))
	}
	v := got.Queue[0]
	if v.URL != "https://example.com/v1" || v.Kind != "video" || v.DestDir != "/vids" ||
		v.QualityHeight != 1080 || v.SubsLangs != "en,de" || !v.EmbedSubs ||
		v.Container != "mkv" || v.Title != "First" {
		t.Errorf("video item = %+v", v)
	}
	a := got.Queue[1]
	if a.Kind != "audio" || a.AudioQuality != 192 || a.EmbedSubs {
		t.Errorf("audio item = %+v", a)
	}
	if len(got.Completed) != 2 || got.Completed[0] != "First (/out/first.mp4)" {
		t.Errorf("completed = %v", got.Completed)
	}
	if got.Defaults.VideoDir != "/vids" || got.Defaults.AudioDir != "/audio" {
		t.Errorf("defaults = %+v", got.Defaults)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSnapshot(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot(&jobs.Snapshot{
		Version: jobs.SnapshotVersion,
		Queue:   []jobs.SnapshotItem{{URL: "only", Kind: "video"}},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Queue) != 1 || got.Queue[0].URL != "only" {
		t.Errorf("queue = %+v, old rows survived the replace", got.Queue)
	}
	if len(got.Completed) != 0 {
		t.Errorf("completed = %v, old rows survived the replace", got.Completed)
	}
}

func TestLoadFromFreshDatabase(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got.Queue) != 0 || len(got.Completed) != 0 {
		t.Errorf("fresh database yielded data: %+v", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Queue) != 2 {
		t.Errorf("reopened store lost data: %+v", got.Queue)
	}
}

func TestCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
