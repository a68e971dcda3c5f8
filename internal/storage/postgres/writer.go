package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/eventlog"
	"github.com/vilaca/alm-eventlog/internal/service"
)

// maxBatch bounds rows per INSERT; Postgres allows 65535 bind parameters.
const maxBatch = 1000

var eventCols = []string{
	"run_id", "seq", "event_id", "action", "event_time", "case_id", "user_id",
	"user_ref", "local_case", "info1", "info2", "ns", "duration",
}

type Writer struct {
	db *DB
}

func NewWriter(db *DB) *Writer { return &Writer{db: db} }

// Write implements service.Sink. The run row, its events and the user upserts
// are committed together; event inserts use ON CONFLICT DO NOTHING so a
// partially replayed run stays idempotent.
func (w *Writer) Write(ctx context.Context, out *service.Output) error {
	tx, err := w.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx,
		`INSERT INTO alm_runs (run_id, started_at, events, projects, failed) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id) DO NOTHING`,
		out.RunID, out.StartedAt, len(out.Events), len(out.Projects), len(out.Failed),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", out.RunID, err)
	}

	for start := 0; start < len(out.Events); start += maxBatch {
		end := min(start+maxBatch, len(out.Events))
		sql, args := buildEventInsert(out.RunID, start, out.Events[start:end])
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert events %d-%d: %w", start, end, err)
		}
	}

	for i, st := range buildUserUpserts(out.Users) {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			return fmt.Errorf("upsert users batch %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", out.RunID, err)
	}
	return nil
}

// buildEventInsert renders a multi-row insert of events numbered from offset.
// Empty optional fields are stored as NULL.
func buildEventInsert(runID string, offset int, events []eventlog.Event) (string, []any) {
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*len(eventCols))

	argi := 1
	for i, ev := range events {
		ph := make([]string, 0, len(eventCols))
		for _, v := range []any{
			runID, offset + i, ev.ID, ev.Action, ev.Time, ev.Case, ev.User,
			ev.UserRef, ev.LocalCase, nullable(ev.Info1), nullable(ev.Info2), nullable(ev.Namespace), ev.Duration,
		} {
			args = append(args, v)
			ph = append(ph, fmt.Sprintf("$%d", argi))
			argi++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
	}

	sql := "INSERT INTO alm_events (" + strings.Join(eventCols, ",") + ") VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT DO NOTHING"
	return sql, args
}

type statement struct {
	sql  string
	args []any
}

// buildUserUpserts renders the registry as upserts of at most maxBatch users,
// ordered by id. An empty registry yields no statements.
func buildUserUpserts(users map[string]string) []statement {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []statement
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		sql, args := buildUserUpsert(ids[start:end], users)
		out = append(out, statement{sql: sql, args: args})
	}
	return out
}

// buildUserUpsert renders one upsert of ids with their names from users.
func buildUserUpsert(ids []string, users map[string]string) (string, []any) {
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("($%d,$%d)", 2*i+1, 2*i+2))
		args = append(args, id, users[id])
	}

	sql := "INSERT INTO alm_users (user_id,name) VALUES " + strings.Join(placeholders, ",") +
		" ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()"
	return sql, args
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
