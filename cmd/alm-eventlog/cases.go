package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vilaca/alm-eventlog/internal/config"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
	"github.com/vilaca/alm-eventlog/internal/storage/sqlite"
)

var casesCmd = &cobra.Command{
	Use:   "cases [case-id]",
	Short: "Print stored events of a case, of a run, or the stored users",
	Long: "cases reads the SQLite database written by 'run --sqlite'. With a case id it prints " +
		"that case's events across every stored run; --run prints one run in its original order " +
		"and --users prints the user registry.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCases,
}

func init() {
	flags := casesCmd.Flags()
	flags.String("sqlite", "", "SQLite database to read (default sqlite_path)")
	flags.String("run", "", "print the events of this run id")
	flags.Bool("users", false, "print the stored user registry")

	rootCmd.AddCommand(casesCmd)
}

// eventStore is the read side of the SQLite sink.
type eventStore interface {
	Events(ctx context.Context, runID string) ([]eventlog.Event, error)
	CaseEvents(ctx context.Context, caseID string) ([]eventlog.Event, error)
	Users(ctx context.Context) (map[string]string, error)
}

type caseQuery struct {
	caseID string
	runID  string
	users  bool
}

func runCases(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	path, _ := flags.GetString("sqlite")
	if path == "" {
		path = cfg.SQLitePath
	}
	if path == "" {
		return errors.New("no SQLite database, pass --sqlite or set sqlite_path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read SQLite database: %w", err)
	}

	var q caseQuery
	if len(args) == 1 {
		q.caseID = args[0]
	}
	q.runID, _ = flags.GetString("run")
	q.users, _ = flags.GetBool("users")

	store, err := sqlite.Open(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer store.Close()

	return showCases(cmd.Context(), store, cmd.OutOrStdout(), q)
}

func showCases(ctx context.Context, store eventStore, out io.Writer, q caseQuery) error {
	selected := 0
	for _, set := range []bool{q.caseID != "", q.runID != "", q.users} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return errors.New("pass exactly one of a case id, --run or --users")
	}

	if q.users {
		users, err := store.Users(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(out, "%-30s %s\n", id, users[id])
		}
		return nil
	}

	var (
		events []eventlog.Event
		err    error
	)
	if q.runID != "" {
		events, err = store.Events(ctx, q.runID)
	} else {
		events, err = store.CaseEvents(ctx, q.caseID)
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no stored events for %s", firstSet(q.caseID, q.runID))
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%-24s %-22s %-16s %-20s %s\n", ev.Time, ev.Action, ev.Case, ev.User, ev.Info1)
	}
	return nil
}

func firstSet(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
