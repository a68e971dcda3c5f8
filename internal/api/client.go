package api

import (
	"context"
	"time"

	"github.com/vilaca/alm-eventlog/internal/domain"
)

// Source defines the interface for ALM platform collaborators.
// Each call returns the entities of one project, already normalized to the
// domain model the correlation engine consumes. Consumers depend on this
// interface, not on concrete platform clients.
type Source interface {
	// Platform returns the platform name, one of domain.Platforms.
	Platform() string

	// GetProject returns the project, including the namespace used in case ids.
	GetProject(ctx context.Context, projectID string) (domain.Project, error)

	// GetIssues returns issues (work items) with their notes, relations and revisions.
	GetIssues(ctx context.Context, projectID string) ([]domain.Issue, error)

	// GetMergeRequests returns merge (pull) requests with commits and activities.
	GetMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequest, error)

	// GetCommits returns the repository commit history.
	GetCommits(ctx context.Context, projectID string) ([]domain.Commit, error)

	// GetPipelines returns pipeline and release runs with their stages.
	GetPipelines(ctx context.Context, projectID string) ([]domain.Pipeline, error)
}

// DefinitionSource extends Source with pipeline definitions.
// This is optional - only Azure DevOps exposes definitions as entities.
type DefinitionSource interface {
	Source

	// GetPipelineDefinitions returns build and release definitions.
	GetPipelineDefinitions(ctx context.Context, projectID string) ([]domain.PipelineDefinition, error)
}

// ClientConfig holds common configuration for API clients.
type ClientConfig struct {
	BaseURL string
	Token   string
	// MaxPages bounds pagination per listing; 0 fetches every page.
	MaxPages int
	// APIDelay is the minimum spacing between two requests.
	APIDelay time.Duration
	// Logger receives per-entity sub-request failures; nil discards them.
	Logger Logger
}

// Logger interface for logging operations (Interface Segregation Principle).
type Logger interface {
	Warnf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(format string, v ...interface{}) {}
