// Package sqlite persists event log runs into an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/vilaca/alm-eventlog/internal/eventlog"
	"github.com/vilaca/alm-eventlog/internal/service"
)

// schema is executed on every open; IF NOT EXISTS keeps it idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id     TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    events     INTEGER NOT NULL,
    projects   INTEGER NOT NULL,
    failed     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    seq        INTEGER NOT NULL,
    id         TEXT NOT NULL,
    action     TEXT NOT NULL,
    time       TEXT NOT NULL,
    case_id    TEXT NOT NULL,
    user       TEXT NOT NULL,
    user_ref   TEXT NOT NULL,
    local_case TEXT NOT NULL,
    info1      TEXT NOT NULL DEFAULT '',
    info2      TEXT NOT NULL DEFAULT '',
    ns         TEXT NOT NULL DEFAULT '',
    duration   REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS events_case ON events(case_id);

CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is a service.Sink backed by a local SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write stores a run, its events in order and the merged user registry, in a
// single transaction. Writing the same run twice is an error.
func (s *Store) Write(ctx context.Context, out *service.Output) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, events, projects, failed) VALUES (?, ?, ?, ?, ?)`,
		out.RunID, out.StartedAt.UTC().Format(time.RFC3339), len(out.Events), len(out.Projects), len(out.Failed),
	); err != nil {
		return fmt.Errorf("sqlite: insert run %s: %w", out.RunID, err)
	}

	insertEvent, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, id, action, time, case_id, user, user_ref, local_case, info1, info2, ns, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare event insert: %w", err)
	}
	defer insertEvent.Close()

	for i, ev := range out.Events {
		if _, err := insertEvent.ExecContext(ctx,
			out.RunID, i, ev.ID, ev.Action, ev.Time, ev.Case, ev.User, ev.UserRef,
			ev.LocalCase, ev.Info1, ev.Info2, ev.Namespace, ev.Duration,
		); err != nil {
			return fmt.Errorf("sqlite: insert event %d: %w", i, err)
		}
	}

	upsertUser, err := tx.PrepareContext(ctx, `
		INSERT INTO users (id, name, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare user upsert: %w", err)
	}
	defer upsertUser.Close()

	for id, name := range out.Users {
		if _, err := upsertUser.ExecContext(ctx, id, name); err != nil {
			return fmt.Errorf("sqlite: upsert user %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit run %s: %w", out.RunID, err)
	}
	return nil
}

// Events returns the events of a run in their original order.
func (s *Store) Events(ctx context.Context, runID string) ([]eventlog.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvents+` FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query events of %s: %w", runID, err)
	}
	return scanEvents(rows)
}

// CaseEvents returns every stored event of a case across runs, ordered by time.
func (s *Store) CaseEvents(ctx context.Context, caseID string) ([]eventlog.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvents+` FROM events WHERE case_id = ? ORDER BY time, run_id, seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query case %s: %w", caseID, err)
	}
	return scanEvents(rows)
}

const selectEvents = `SELECT id, action, time, case_id, user, user_ref, local_case, info1, info2, ns, duration`

func scanEvents(rows *sql.Rows) ([]eventlog.Event, error) {
	defer rows.Close()

	var events []eventlog.Event
	for rows.Next() {
		var ev eventlog.Event
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.Time, &ev.Case, &ev.User, &ev.UserRef,
			&ev.LocalCase, &ev.Info1, &ev.Info2, &ev.Namespace, &ev.Duration); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Users returns the stored user registry.
func (s *Store) Users(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: query users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("sqlite: scan user: %w", err)
		}
		users[id] = name
	}
	return users, rows.Err()
}
