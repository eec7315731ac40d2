// Package store keeps a SQLite record of transcription runs and per-file
// outcomes for after-the-fact inspection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// FileRecord is the stored outcome of one processed audio file.
type FileRecord struct {
	ID         int64
	RunID      string
	Path       string
	Status     string // ok or failed
	Phrases    int
	Transcript string
	DurationMS int64
	Error      string
	CreatedAt  time.Time
}

// Store wraps the SQLite-backed run history. In ephemeral mode every method
// is a no-op, so callers never branch on whether persistence is enabled.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    input_dir TEXT,
    output_path TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    path TEXT NOT NULL,
    status TEXT NOT NULL,
    phrases INTEGER NOT NULL DEFAULT 0,
    transcript TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_files_run_created ON files(run_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records the start of a transcription run.
func (s *Store) BeginRun(ctx context.Context, runID, inputDir, outputPath string) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, input_dir, output_path, created_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET input_dir=excluded.input_dir, output_path=excluded.output_path`,
		runID, inputDir, outputPath, s.clock().UTC())
	return err
}

// AppendFile records the outcome of one processed file.
func (s *Store) AppendFile(ctx context.Context, rec FileRecord) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files(run_id, path, status, phrases, transcript, duration_ms, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Path, rec.Status, rec.Phrases, rec.Transcript, rec.DurationMS, rec.Error, rec.CreatedAt)
	return err
}

// ListRunFiles retrieves up to limit file records for a run, oldest first.
func (s *Store) ListRunFiles(ctx context.Context, runID string, limit int) ([]FileRecord, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, status, phrases, transcript, duration_ms, error, created_at
		 FROM files WHERE run_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var r FileRecord
		var created string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Path, &r.Status, &r.Phrases, &r.Transcript, &r.DurationMS, &r.Error, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
