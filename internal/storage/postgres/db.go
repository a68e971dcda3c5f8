// Package postgres persists event log runs into PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS alm_runs (
    run_id     TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    events     INTEGER NOT NULL,
    projects   INTEGER NOT NULL,
    failed     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS alm_events (
    run_id     TEXT NOT NULL REFERENCES alm_runs(run_id),
    seq        INTEGER NOT NULL,
    event_id   TEXT NOT NULL,
    action     TEXT NOT NULL,
    event_time TEXT NOT NULL,
    case_id    TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    user_ref   TEXT NOT NULL,
    local_case TEXT NOT NULL,
    info1      TEXT,
    info2      TEXT,
    ns         TEXT,
    duration   DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS alm_events_case ON alm_events(case_id);

CREATE TABLE IF NOT EXISTS alm_users (
    user_id    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ready(ctx context.Context) error {
	var one int
	return db.Pool.QueryRow(ctx, "select 1").Scan(&one)
}

// EnsureSchema creates the tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
