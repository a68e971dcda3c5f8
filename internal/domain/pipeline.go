package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PipelineKind distinguishes build pipelines from release runs.
type PipelineKind string

const (
	KindPipeline PipelineKind = "pipeline"
	KindRelease  PipelineKind = "release"
)

// Pipeline represents a CI/CD pipeline run or a release run from any platform.
// This is a domain model (part of business logic).
type Pipeline struct {
	ID             string       `json:"id"`
	Kind           PipelineKind `json:"kind"`
	DefinitionID   string       `json:"definition_id,omitempty"`
	DefinitionName string       `json:"definition_name,omitempty"`
	Name           string       `json:"name,omitempty"`
	ProjectID      string       `json:"project_id"`
	SHA            string       `json:"sha"` // triggering commit
	Branch         string       `json:"branch"`
	Status         Status       `json:"status"`
	Trigger        string       `json:"trigger,omitempty"`
	Author         Actor        `json:"author"`
	CreatedAt      string       `json:"created_at"`
	FinishedAt     string       `json:"finished_at,omitempty"`
	WebURL         string       `json:"web_url,omitempty"`
	Stages         []Stage      `json:"stages,omitempty"`
}

// Stage represents a single job, stage or deployment within a pipeline run.
type Stage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     Status `json:"status"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Actor      Actor  `json:"actor"`
}

// PipelineDefinition describes a build or release definition.
type PipelineDefinition struct {
	ID        string       `json:"id"`
	Kind      PipelineKind `json:"kind"`
	Name      string       `json:"name"`
	Author    Actor        `json:"author"`
	CreatedAt string       `json:"created_at"`
}

// Status represents the state of a pipeline or stage.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusSkipped  Status = "skipped"
)

// IsTerminal returns true if the status is in a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// IsStarted returns true if a job in this status actually ran.
func (s Status) IsStarted() bool {
	return s == StatusRunning || s == StatusSuccess || s == StatusFailed
}

// Project represents a code repository project.
// Namespace is the scope prefixed into every case id of the project.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	WebURL    string `json:"web_url,omitempty"`
	Platform  string `json:"platform"` // platform identifier (e.g., "gitlab", "github")
}

var isoShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]`)

// IsISOTime reports whether s has an ISO-8601 date-time shape:
// four-digit year, month, day, then a 'T' or space separator.
func IsISOTime(s string) bool {
	return isoShape.MatchString(s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses the ISO-8601 variants returned by the supported platforms.
// Timestamps without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// LatestTime returns the latest parseable timestamp of values in its original form,
// or "" if none parses.
func LatestTime(values ...string) string {
	var latest time.Time
	result := ""
	for _, v := range values {
		t, err := ParseTime(v)
		if err != nil {
			continue
		}
		if result == "" || t.After(latest) {
			latest = t
			result = v
		}
	}
	return result
}
