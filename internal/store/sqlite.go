package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS embedding_cache (
  content_hash TEXT PRIMARY KEY,
  embedding BLOB NOT NULL,
  dimension INTEGER NOT NULL,
  model TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_rows (
  owner TEXT NOT NULL DEFAULT '',
  id TEXT NOT NULL,
  kind TEXT NOT NULL,
  text TEXT NOT NULL,
  ts INTEGER NOT NULL,
  embedding BLOB,
  PRIMARY KEY (owner, id)
);

CREATE INDEX IF NOT EXISTS idx_memory_rows_ts ON memory_rows(ts);

CREATE TABLE IF NOT EXISTS traces (
  id TEXT PRIMARY KEY,
  ts INTEGER NOT NULL,
  body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_ts ON traces(ts);

CREATE TABLE IF NOT EXISTS schedule_blocks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  start_at TEXT NOT NULL,
  end_at TEXT NOT NULL,
  body TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedule_blocks_user ON schedule_blocks(user_id, start_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// runMigrations applies schema changes added after the initial schema.
// Each migration is idempotent so it is safe to call on every open.
func runMigrations(db *sql.DB) error {
	hasLabel, err := columnExists(db, "traces", "intent_label")
	if err != nil {
		return fmt.Errorf("check intent_label column: %w", err)
	}
	if !hasLabel {
		migrations := []string{
			`ALTER TABLE traces ADD COLUMN intent_label TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_traces_intent_label ON traces(intent_label)`,
		}
		for _, m := range migrations {
			if _, err := db.Exec(m); err != nil {
				return fmt.Errorf("run migration v2: %w", err)
			}
		}
	}

	hasOwner, err := columnExists(db, "memory_rows", "owner")
	if err != nil {
		return fmt.Errorf("check owner column: %w", err)
	}
	if !hasOwner {
		if err := migrateRowOwners(db); err != nil {
			return fmt.Errorf("run migration v3: %w", err)
		}
	}
	return nil
}

// migrateRowOwners rebuilds memory_rows with an owner column in the
// primary key. Existing rows become shared.
func migrateRowOwners(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	migrations := []string{
		`ALTER TABLE memory_rows RENAME TO memory_rows_v2`,
		`CREATE TABLE memory_rows (
			owner TEXT NOT NULL DEFAULT '',
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			ts INTEGER NOT NULL,
			embedding BLOB,
			PRIMARY KEY (owner, id)
		)`,
		`INSERT INTO memory_rows (owner, id, kind, text, ts, embedding)
			SELECT '', id, kind, text, ts, embedding FROM memory_rows_v2`,
		`DROP TABLE memory_rows_v2`,
		`CREATE INDEX IF NOT EXISTS idx_memory_rows_ts ON memory_rows(ts)`,
	}
	for _, m := range migrations {
		if _, err := tx.Exec(m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RowCount returns the number of snapshotted memory rows.
func (db *DB) RowCount(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_rows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count memory rows: %w", err)
	}
	return count, nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
