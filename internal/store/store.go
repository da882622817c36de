// Package store persists notes and their transcribed segments in SQLite.
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
)

// schemaVersion is the current linear migration target.
const schemaVersion = 4

// migrations are applied in order; index i holds the DDL for version i+1.
// Statements must stay individually re-runnable only through the repair
// pass, which uses the IF NOT EXISTS forms below.
var migrations = []string{
	// v1: notes
	`CREATE TABLE notes (
    id TEXT PRIMARY KEY,
    createdAt INTEGER NOT NULL,
    updatedAt INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    durationMs INTEGER,
    languageLock TEXT,
    audioPath TEXT,
    asrModel TEXT
);`,
	// v2: segments with the uniqueness invariant and CASCADE
	`CREATE TABLE segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    noteId TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    startMs INTEGER NOT NULL,
    endMs INTEGER NOT NULL,
    text TEXT NOT NULL,
    isFinal INTEGER NOT NULL DEFAULT 1,
    lang TEXT,
    UNIQUE(noteId, startMs, endMs)
);`,
	// v3: insight pipeline columns, opaque to the recording core
	`ALTER TABLE notes ADD COLUMN llmModel TEXT;
ALTER TABLE notes ADD COLUMN insightsStatus TEXT;`,
	// v4: segment lookup index
	`CREATE INDEX idx_segments_note_start ON segments(noteId, startMs);`,
}

// Store wraps the SQLite database holding notes and segments.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the database at path, applying pending migrations and the
// post-migration repair pass. Foreign keys are enabled on the connection so
// the note→segment CASCADE fires.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log.With(slog.String("component", "store")), clock: time.Now}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.repair(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, appliedAt INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := int(current.Int64) + 1; v <= schemaVersion; v++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v-1]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations(version, appliedAt) VALUES(?, ?)`,
			v, s.clock().UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v, err)
		}
		s.log.Info("applied migration", slog.Int("version", v))
	}
	return nil
}

// repair verifies each required table survived migration and recreates any
// missing one idempotently.
func (s *Store) repair(ctx context.Context) error {
	required := map[string]string{
		"notes": `CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    createdAt INTEGER NOT NULL,
    updatedAt INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    durationMs INTEGER,
    languageLock TEXT,
    audioPath TEXT,
    asrModel TEXT,
    llmModel TEXT,
    insightsStatus TEXT
);`,
		"segments": `CREATE TABLE IF NOT EXISTS segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    noteId TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    startMs INTEGER NOT NULL,
    endMs INTEGER NOT NULL,
    text TEXT NOT NULL,
    isFinal INTEGER NOT NULL DEFAULT 1,
    lang TEXT,
    UNIQUE(noteId, startMs, endMs)
);
CREATE INDEX IF NOT EXISTS idx_segments_note_start ON segments(noteId, startMs);`,
	}

	for table, ddl := range required {
		var name string
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err == sql.ErrNoRows {
			s.log.Warn("required table missing, recreating", slog.String("table", table))
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("recreate table %s: %w", table, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("inspect table %s: %w", table, err)
		}
	}
	return nil
}
