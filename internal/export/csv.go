// Package export writes a run's output as flat files: a CSV event log, one
// CSV table per entity kind and a JSON user dump.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/service"
)

// listSep joins multi-valued cells.
const listSep = ";"

// Logger interface for logging operations.
type Logger interface {
	Infof(format string, v ...interface{})
}

// FileExporter writes every table of a run into a directory.
type FileExporter struct {
	dir      string
	suffix   string
	userDump string
	logger   Logger
}

// NewFileExporter creates an exporter writing into dir. Table files are named
// "<table>_<suffix>.csv" (or "<table>.csv" without a suffix). An empty
// userDump disables the user dump; a relative one is placed under dir.
func NewFileExporter(dir, suffix, userDump string, logger Logger) *FileExporter {
	return &FileExporter{dir: dir, suffix: suffix, userDump: userDump, logger: logger}
}

// Table is one exported file: a header and its rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Write implements service.Sink.
func (e *FileExporter) Write(ctx context.Context, out *service.Output) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, t := range Tables(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := e.Path(t.Name)
		if err := writeCSV(path, t.Header, t.Rows); err != nil {
			return err
		}
		e.logger.Infof("wrote %d %s rows to %s", len(t.Rows), t.Name, path)
	}

	if e.userDump == "" {
		return nil
	}
	path := e.userDump
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	if err := writeUsers(path, out.Users); err != nil {
		return err
	}
	e.logger.Infof("wrote %d users to %s", len(out.Users), path)
	return nil
}

// Path returns the file a table is written to.
func (e *FileExporter) Path(name string) string {
	if e.suffix == "" {
		return filepath.Join(e.dir, name+".csv")
	}
	return filepath.Join(e.dir, name+"_"+e.suffix+".csv")
}

// Tables flattens out into the exported tables, in write order.
func Tables(out *service.Output) []Table {
	events := Table{
		Name:   "event_log",
		Header: []string{"id", "action", "time", "case", "user", "user_ref", "local_case", "info1", "info2", "ns", "duration", "run_id"},
	}
	for _, ev := range out.Events {
		events.Rows = append(events.Rows, []string{
			ev.ID, ev.Action, ev.Time, ev.Case, ev.User, ev.UserRef, ev.LocalCase,
			ev.Info1, ev.Info2, ev.Namespace, formatFloat(ev.Duration), out.RunID,
		})
	}

	issues := Table{
		Name:   "issues",
		Header: []string{"platform", "id", "global_id", "title", "type", "author_id", "author_name", "created_time", "updated_time", "state", "project_id", "ext_issue_id", "case_id", "branches", "mentioned_issues"},
	}
	mrs := Table{
		Name:   "merge_requests",
		Header: []string{"platform", "id", "title", "author_id", "author_name", "created_time", "updated_time", "state", "source_branch", "target_branch", "project_id", "ext_issue_id", "linked_issues", "mentioned_issues", "case_id", "link_type"},
	}
	commits := Table{
		Name:   "commits",
		Header: []string{"platform", "id", "author", "created_time", "message", "project_id", "pre_merge", "post_merge", "commit_list", "chosen_mr", "case_id", "link_type"},
	}
	pipelines := Table{
		Name:   "pipelines",
		Header: []string{"platform", "id", "kind", "definition", "source", "sha", "author", "created_time", "duration", "status", "trigger", "project_id", "case_id", "link_type"},
	}

	for _, p := range out.Projects {
		for _, r := range p.Issues {
			issues.Rows = append(issues.Rows, issueRow(p.Platform, r))
		}
		for _, r := range p.MergeRequests {
			mrs.Rows = append(mrs.Rows, mergeRequestRow(p.Platform, r))
		}
		for _, r := range p.Commits {
			commits.Rows = append(commits.Rows, commitRow(p.Platform, r))
		}
		for _, r := range p.Pipelines {
			pipelines.Rows = append(pipelines.Rows, pipelineRow(p.Platform, r))
		}
	}

	return []Table{events, issues, mrs, commits, pipelines}
}

func issueRow(platform string, r correlation.IssueRecord) []string {
	return []string{
		platform, r.ID, r.GlobalID, r.Title, r.Type, r.AuthorID, r.AuthorName,
		r.CreatedTime, r.UpdatedTime, r.State, r.ProjectID, r.ExtIssueID, r.CaseID,
		strings.Join(r.Branches, listSep), strings.Join(r.MentionedIssues, listSep),
	}
}

func mergeRequestRow(platform string, r correlation.MergeRequestRecord) []string {
	return []string{
		platform, r.ID, r.Title, r.AuthorID, r.AuthorName, r.CreatedTime, r.UpdatedTime,
		r.State, r.SourceBranch, r.TargetBranch, r.ProjectID, r.ExtIssueID,
		strings.Join(r.LinkedIssues, listSep), strings.Join(r.MentionedIssues, listSep),
		r.CaseID, string(r.LinkType),
	}
}

func commitRow(platform string, r correlation.CommitRecord) []string {
	return []string{
		platform, r.ID, r.Author, r.CreatedTime, r.Message, r.ProjectID,
		strings.Join(r.PreMerge, listSep), strings.Join(r.PostMerge, listSep),
		strings.Join(r.CommitList, listSep), r.ChosenMR, r.CaseID, string(r.LinkType),
	}
}

func pipelineRow(platform string, r correlation.PipelineRecord) []string {
	return []string{
		platform, r.ID, r.Kind, r.Definition, r.Source, r.SHA, r.Author, r.CreatedTime,
		formatFloat(r.Duration), r.Status, r.Trigger, r.ProjectID, r.CaseID, string(r.LinkType),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func writeUsers(path string, users map[string]string) error {
	if users == nil {
		users = map[string]string{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
