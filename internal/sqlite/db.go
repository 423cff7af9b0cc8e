package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection. File databases run in WAL
// mode with a busy timeout applied to every pooled connection.
func New(dataSourceName string) (*DB, error) {
	memory := dataSourceName == ":memory:"
	dsn := dataSourceName
	if !memory && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return &DB{db}, nil
}

// Ping checks that the database answers queries.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// RunMigrations creates the catalog schema. It is safe to run on every start.
func (db *DB) RunMigrations() error {
	migration := `
-- Simulation catalog
CREATE TABLE IF NOT EXISTS simulations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    source_path TEXT NOT NULL,
    dataset_path TEXT,
    metadata_path TEXT,
    quarantine_path TEXT,
    status TEXT NOT NULL CHECK(status IN ('PENDING', 'CONVERTING', 'READY', 'FAILED', 'QUARANTINED')),
    variables TEXT NOT NULL DEFAULT '[]',
    time_start REAL,
    time_end REAL,
    row_count INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    error_detail TEXT,
    last_error TEXT,
    created_at TIMESTAMP NOT NULL,
    converted_at TIMESTAMP,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_simulations_source ON simulations(source_path);
CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at);

-- Pipeline events
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('Ingested', 'Failed', 'Quarantined')),
    simulation_id TEXT NOT NULL,
    detail TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_simulation ON events(simulation_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
