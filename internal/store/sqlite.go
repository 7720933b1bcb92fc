// Package store persists the queue snapshot in a SQLite database so pending
// downloads survive a restart.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/downvid/downvid/internal/jobs"
	"github.com/downvid/downvid/internal/logger"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS queue (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	kind TEXT NOT NULL,
	dest_dir TEXT NOT NULL DEFAULT '',
	quality_height INTEGER NOT NULL DEFAULT 0,
	audio_quality INTEGER NOT NULL DEFAULT 0,
	subs_langs TEXT NOT NULL DEFAULT '',
	embed_subs INTEGER NOT NULL DEFAULT 0,
	container TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS completed (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS defaults (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements jobs.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if needed) the snapshot database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for concurrent readers while a snapshot write is in flight
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	} else if version > schemaVersion {
		db.Close()
		return nil, fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// SaveSnapshot replaces the persisted snapshot with snap, atomically.
func (s *SQLiteStore) SaveSnapshot(snap *jobs.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"queue", "completed", "defaults"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, item := range snap.Queue {
		_, err := tx.Exec(
			`INSERT INTO queue (url, kind, dest_dir, quality_height, audio_quality, subs_langs, embed_subs, container, title)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.URL, item.Kind, item.DestDir, item.QualityHeight, item.AudioQuality,
			item.SubsLangs, boolToInt(item.EmbedSubs), item.Container, item.Title,
		)
		if err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}
	}

	for _, label := range snap.Completed {
		if _, err := tx.Exec("INSERT INTO completed (label) VALUES (?)", label); err != nil {
			return fmt.Errorf("insert completed record: %w", err)
		}
	}

	for key, value := range map[string]string{
		"video_dir": snap.Defaults.VideoDir,
		"audio_dir": snap.Defaults.AudioDir,
	} {
		if _, err := tx.Exec("INSERT INTO defaults (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("insert default %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted snapshot. A corrupt or partially
// readable database yields an empty snapshot with a warning rather than an
// error: losing a saved queue must never stop the server from starting.
func (s *SQLiteStore) LoadSnapshot() (*jobs.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &jobs.Snapshot{Version: jobs.SnapshotVersion}

	rows, err := s.db.Query(
		`SELECT url, kind, dest_dir, quality_height, audio_quality, subs_langs, embed_subs, container, title
		 FROM queue ORDER BY position`,
	)
	if err != nil {
		logger.Warn("snapshot queue unreadable, starting empty", "error", err)
		return snap, nil
	}
	defer rows.Close()

	for rows.Next() {
		var item jobs.SnapshotItem
		var embed int
		if err := rows.Scan(&item.URL, &item.Kind, &item.DestDir, &item.QualityHeight,
			&item.AudioQuality, &item.SubsLangs, &embed, &item.Container, &item.Title); err != nil {
			logger.Warn("snapshot row unreadable, skipping", "error", err)
			continue
		}
		item.EmbedSubs = embed != 0
		snap.Queue = append(snap.Queue, item)
	}
	if err := rows.Err(); err != nil {
		logger.Warn("snapshot queue truncated", "error", err)
	}

	snap.Completed = s.loadCompleted()
	snap.Defaults.VideoDir = s.loadDefault("video_dir")
	snap.Defaults.AudioDir = s.loadDefault("audio_dir")
	return snap, nil
}

func (s *SQLiteStore) loadCompleted() []string {
	rows, err := s.db.Query("SELECT label FROM completed ORDER BY position")
	if err != nil {
		logger.Warn("completed records unreadable", "error", err)
		return nil
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			continue
		}
		out = append(out, label)
	}
	return out
}

func (s *SQLiteStore) loadDefault(key string) string {
	var value string
	err := s.db.QueryRow("SELECT value FROM defaults WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
