package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

// Open opens the run history database in dir and initializes the schema
func Open(dir string) (*DB, error) {
	return OpenFile(filepath.Join(dir, "macroflow.db"))
}

// OpenFile opens the database at path
func OpenFile(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized through one connection
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		macro TEXT NOT NULL,

		-- Unix milliseconds
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,

		loop_count INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		executed INTEGER NOT NULL,
		failed INTEGER NOT NULL,

		-- completed, stopped, hotkey or error
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_macro ON runs(macro);
	CREATE INDEX IF NOT EXISTS idx_runs_reason ON runs(reason);
	`

	_, err := db.conn.Exec(schema)
	return err
}
