// Package dashboard renders a run of the event log builder as a static HTML
// report: run totals, one summary row per case and the pipeline runs.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/service"
)

// maxActions bounds the distinct actions listed per case.
const maxActions = 8

// CaseSummary aggregates the events of one case.
type CaseSummary struct {
	Case       string
	Events     int
	First      string
	Last       string
	Actions    []string // distinct, in first-seen order
	LocalCases int
	Users      int
}

// Summarize groups events by case, ordered by event count then case id.
func Summarize(out *service.Output) []CaseSummary {
	byCase := make(map[string]*CaseSummary)
	locals := make(map[string]map[string]bool)
	users := make(map[string]map[string]bool)

	for _, ev := range out.Events {
		s, ok := byCase[ev.Case]
		if !ok {
			s = &CaseSummary{Case: ev.Case, First: ev.Time, Last: ev.Time}
			byCase[ev.Case] = s
			locals[ev.Case] = make(map[string]bool)
			users[ev.Case] = make(map[string]bool)
		}
		s.Events++
		// ISO-8601 strings of one platform compare chronologically.
		if ev.Time < s.First {
			s.First = ev.Time
		}
		if ev.Time > s.Last {
			s.Last = ev.Time
		}
		if !contains(s.Actions, ev.Action) {
			s.Actions = append(s.Actions, ev.Action)
		}
		locals[ev.Case][ev.LocalCase] = true
		users[ev.Case][ev.User] = true
	}

	summaries := make([]CaseSummary, 0, len(byCase))
	for id, s := range byCase {
		s.LocalCases = len(locals[id])
		s.Users = len(users[id])
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Events != summaries[j].Events {
			return summaries[i].Events > summaries[j].Events
		}
		return summaries[i].Case < summaries[j].Case
	})
	return summaries
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Render writes the HTML report of out.
func Render(w io.Writer, out *service.Output) error {
	var sb strings.Builder

	sb.WriteString(htmlHead("Run " + out.RunID))
	sb.WriteString(`
<body>
	<div class="container">
`)
	sb.WriteString(fmt.Sprintf("\t\t<h1>Event log run <span class=\"mono\">%s</span></h1>\n", escapeHTML(out.RunID)))

	cases := Summarize(out)
	writeStats(&sb, out, len(cases))
	writeFailed(&sb, out.Failed)
	writeCases(&sb, cases)
	writePipelines(&sb, out.Projects)

	sb.WriteString(htmlFooter())
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeStats(sb *strings.Builder, out *service.Output, cases int) {
	undefined := 0
	for _, p := range out.Projects {
		for _, mr := range p.MergeRequests {
			if mr.LinkType == correlation.LinkUndefined {
				undefined++
			}
		}
	}

	sb.WriteString("\t\t<div class=\"stats-grid\">\n")
	for _, stat := range []struct {
		label string
		value int
	}{
		{"Projects", len(out.Projects)},
		{"Events", len(out.Events)},
		{"Cases", cases},
		{"Users", len(out.Users)},
		{"Unlinked merge requests", undefined},
	} {
		sb.WriteString(fmt.Sprintf("\t\t\t<div class=\"card\"><div class=\"stat\">%d</div><div class=\"stat-label\">%s</div></div>\n",
			stat.value, stat.label))
	}
	sb.WriteString("\t\t</div>\n")
}

func writeFailed(sb *strings.Builder, failed []service.Target) {
	if len(failed) == 0 {
		return
	}
	sb.WriteString("\t\t<div class=\"card\">\n\t\t\t<h2>Failed projects</h2>\n\t\t\t<ul>\n")
	for _, t := range failed {
		sb.WriteString(fmt.Sprintf("\t\t\t\t<li>%s <span class=\"mono\">%s</span></li>\n",
			escapeHTML(t.Platform), escapeHTML(t.Project)))
	}
	sb.WriteString("\t\t\t</ul>\n\t\t</div>\n")
}

func writeCases(sb *strings.Builder, cases []CaseSummary) {
	sb.WriteString("\t\t<div class=\"card\">\n\t\t\t<h2>Cases</h2>\n")
	if len(cases) == 0 {
		sb.WriteString("\t\t\t<div class=\"empty\">No events recorded.</div>\n\t\t</div>\n")
		return
	}

	sb.WriteString(`			<table>
				<tr><th>Case</th><th>Events</th><th>Entities</th><th>Users</th><th>First</th><th>Last</th><th>Actions</th></tr>
`)
	for _, c := range cases {
		actions := c.Actions
		more := ""
		if len(actions) > maxActions {
			more = fmt.Sprintf(" +%d", len(actions)-maxActions)
			actions = actions[:maxActions]
		}
		sb.WriteString(fmt.Sprintf("\t\t\t\t<tr><td class=\"mono\">%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td><td>%s</td><td>%s%s</td></tr>\n",
			escapeHTML(c.Case), c.Events, c.LocalCases, c.Users,
			escapeHTML(c.First), escapeHTML(c.Last),
			escapeHTML(strings.Join(actions, ", ")), more))
	}
	sb.WriteString("\t\t\t</table>\n\t\t</div>\n")
}

func writePipelines(sb *strings.Builder, projects []service.ProjectResult) {
	var rows []correlation.PipelineRecord
	for _, p := range projects {
		rows = append(rows, p.Pipelines...)
	}
	if len(rows) == 0 {
		return
	}

	sb.WriteString(`		<div class="card">
			<h2>Pipeline runs</h2>
			<table>
				<tr><th>Run</th><th>Kind</th><th>Status</th><th>Duration (s)</th><th>Case</th><th>Link</th></tr>
`)
	for _, r := range rows {
		linkClass := ""
		if r.LinkType == correlation.LinkUndefined {
			linkClass = " class=\"link-undefined\""
		}
		sb.WriteString(fmt.Sprintf("\t\t\t\t<tr><td class=\"mono\">%s</td><td>%s</td><td>%s</td><td>%.0f</td><td class=\"mono\">%s</td><td%s>%s</td></tr>\n",
			escapeHTML(r.ID), escapeHTML(r.Kind), statusBadge(r.Status), r.Duration,
			escapeHTML(r.CaseID), linkClass, escapeHTML(string(r.LinkType))))
	}
	sb.WriteString("\t\t\t</table>\n\t\t</div>\n")
}

// ReportWriter is a service.Sink writing the report into a directory.
type ReportWriter struct {
	dir    string
	suffix string
}

// NewReportWriter creates a report sink writing "report[_suffix].html" into dir.
func NewReportWriter(dir, suffix string) *ReportWriter {
	return &ReportWriter{dir: dir, suffix: suffix}
}

// Path returns the report file.
func (r *ReportWriter) Path() string {
	if r.suffix == "" {
		return filepath.Join(r.dir, "report.html")
	}
	return filepath.Join(r.dir, "report_"+r.suffix+".html")
}

// Write implements service.Sink.
func (r *ReportWriter) Write(ctx context.Context, out *service.Output) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(r.Path())
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := Render(f, out); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return f.Close()
}
