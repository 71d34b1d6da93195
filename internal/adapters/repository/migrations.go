package repository

import (
	"context"
	"database/sql"
)

// schema is applied on open; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS reports (
    source TEXT PRIMARY KEY,
    imported_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
    source TEXT NOT NULL,
    month TEXT NOT NULL,
    metric TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (source, month, metric),
    FOREIGN KEY (source) REFERENCES reports(source) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    months INTEGER NOT NULL,
    universes INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    required_profit REAL NOT NULL,
    target_unreachable INTEGER NOT NULL DEFAULT 0,
    mean_profit REAL NOT NULL,
    probability_profit_on_target REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_people (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    partner INTEGER NOT NULL,
    target_pay REAL NOT NULL,
    mean_pay REAL NOT NULL,
    p05_pay REAL NOT NULL,
    p50_pay REAL NOT NULL,
    p95_pay REAL NOT NULL,
    probability_on_target REAL NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
