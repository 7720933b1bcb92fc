package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/downvid/downvid/internal/logger"
)

// SnapshotVersion is bumped when the snapshot schema changes shape.
const SnapshotVersion = 1

// SnapshotItem is one pending download in a persisted snapshot. It carries
// the request, not the runtime state: restored items start over as queued.
type SnapshotItem struct {
	URL           string `json:"url"`
	Kind          string `json:"kind"`
	DestDir       string `json:"destDir,omitempty"`
	QualityHeight int    `json:"qualityHeight,omitempty"`
	AudioQuality  int    `json:"audioQuality,omitempty"`
	SubsLangs     string `json:"subsLangs,omitempty"` // comma separated
	EmbedSubs     bool   `json:"embedSubs,omitempty"`
	Container     string `json:"container,omitempty"`
	Title         string `json:"title,omitempty"`
}

// SnapshotDefaults records the destination directories active when the
// snapshot was taken.
type SnapshotDefaults struct {
	VideoDir string `json:"videoDir"`
	AudioDir string `json:"audioDir"`
}

// Snapshot is the persisted queue state: pending items plus the completed
// display records.
type Snapshot struct {
	Version   int              `json:"version"`
	Queue     []SnapshotItem   `json:"queue"`
	Completed []string         `json:"completed"`
	Defaults  SnapshotDefaults `json:"defaults"`
}

// buildSnapshot captures the current non-terminal queue.
func (q *Queue) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Version: SnapshotVersion,
		Defaults: SnapshotDefaults{
			VideoDir: q.cfg.VideoDir,
			AudioDir: q.cfg.AudioDir,
		},
	}

	q.mu.Lock()
	for _, id := range q.order {
		job, ok := q.jobs[id]
		if !ok {
			continue
		}
		j := job.Snapshot()
		if j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled {
			continue
		}
		snap.Queue = append(snap.Queue, SnapshotItem{
			URL:           j.URL,
			Kind:          string(j.Kind),
			DestDir:       j.DestDir,
			QualityHeight: j.QualityHeight,
			AudioQuality:  j.AudioQuality,
			SubsLangs:     strings.Join(j.SubsLangs, ","),
			EmbedSubs:     j.EmbedSubs,
			Container:     j.Container,
			Title:         j.Title,
		})
	}
	snap.Completed = make([]string, len(q.completed))
	copy(snap.Completed, q.completed)
	q.mu.Unlock()

	return snap
}

// persistSnapshot writes the current queue to the store. Persistence
// failures are logged, never surfaced to the caller: a broken state file
// must not block queue operations.
func (q *Queue) persistSnapshot() {
	if q.store == nil {
		return
	}
	if err := q.store.SaveSnapshot(q.buildSnapshot()); err != nil {
		logger.Warn("failed to persist queue snapshot", "error", err)
	}
}

// ExportJSON serializes the current pending queue for download by a client.
func (q *Queue) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(q.buildSnapshot(), "", "  ")
}

// ImportJSON enqueues every item of an exported snapshot as a fresh job.
// Imported items get new IDs and start from queued regardless of what state
// the exporting server was in. Items are added individually so one bad URL
// does not abort the import; the count of accepted items is returned.
func (q *Queue) ImportJSON(ctx context.Context, data []byte) (int, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return 0, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion)
	}

	added := 0
	for _, item := range snap.Queue {
		if item.URL == "" {
			continue
		}
		created, err := q.Add(ctx, item.URL, specFromSnapshotItem(item))
		if err != nil {
			logger.Warn("import skipped item", "url", item.URL, "error", err)
			continue
		}
		if item.Title != "" {
			for _, j := range created {
				q.SetTitle(j.ID, item.Title)
			}
		}
		added++
	}
	return added, nil
}

// Restore loads the persisted snapshot and re-enqueues its pending items.
// A missing or unreadable snapshot restores nothing; restore always starts
// the server rather than failing it.
func (q *Queue) Restore(ctx context.Context) {
	if q.store == nil {
		return
	}
	snap, err := q.store.LoadSnapshot()
	if err != nil {
		logger.Warn("failed to load queue snapshot", "error", err)
		return
	}
	if snap == nil {
		return
	}

	q.mu.Lock()
	q.completed = append(q.completed, snap.Completed...)
	q.mu.Unlock()

	for _, item := range snap.Queue {
		if item.URL == "" {
			continue
		}
		created, err := q.Add(ctx, item.URL, specFromSnapshotItem(item))
		if err != nil {
			logger.Warn("restore skipped item", "url", item.URL, "error", err)
			continue
		}
		if item.Title != "" {
			for _, j := range created {
				q.SetTitle(j.ID, item.Title)
			}
		}
	}
	if len(snap.Queue) > 0 {
		logger.Info("restored pending downloads", "count", len(snap.Queue))
	}
}

// specFromSnapshotItem rebuilds a job spec from a persisted item, leaving
// unset fields for applyDefaults to fill.
func specFromSnapshotItem(item SnapshotItem) Spec {
	spec := Spec{
		Kind:          ParseKind(item.Kind),
		DestDir:       item.DestDir,
		QualityHeight: item.QualityHeight,
		AudioQuality:  item.AudioQuality,
		EmbedSubs:     item.EmbedSubs,
		Container:     item.Container,
	}
	if item.SubsLangs != "" {
		spec.SubsLangs = strings.Split(item.SubsLangs, ",")
	}
	return spec
}
