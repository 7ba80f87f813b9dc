// Package sqlite provides SQLite-based persistent storage for Ampli.
// Uses WAL mode for concurrent reads and crash-safe writes. It backs the
// billing usage ledger, the competition audit trail, and the evolution
// training dataset.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// OpenMemory opens an in-memory database. Used in tests.
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Billing usage ledger — one row per emitted usage event.
		`CREATE TABLE IF NOT EXISTS usage_ledger (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			tenant     TEXT NOT NULL,
			ref_id     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			cost_micro INTEGER NOT NULL,
			task_type  TEXT,
			platforms  INTEGER NOT NULL DEFAULT 0,
			priority   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_tenant ON usage_ledger(tenant)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_ledger(timestamp)`,

		// Competition audit trail — settled competitions only.
		`CREATE TABLE IF NOT EXISTS competitions (
			id             TEXT PRIMARY KEY,
			tenant         TEXT NOT NULL,
			status         TEXT NOT NULL,
			champion       TEXT,
			champion_score REAL,
			win_rate_delta REAL,
			evolved        BOOLEAN DEFAULT 0,
			cost_micro     INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL,
			completed_at   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_competitions_tenant ON competitions(tenant)`,

		// Evolution dataset — champion content handed to the training pipeline.
		`CREATE TABLE IF NOT EXISTS evolution_dataset (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			competition_id TEXT NOT NULL,
			tenant         TEXT NOT NULL,
			variant        TEXT NOT NULL,
			content        TEXT NOT NULL,
			score          REAL NOT NULL,
			win_rate_delta REAL NOT NULL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evolution_tenant ON evolution_dataset(tenant)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
