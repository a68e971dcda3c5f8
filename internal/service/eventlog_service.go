package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
	"github.com/vilaca/alm-eventlog/internal/logging"
)

// ErrUnknownPlatform is returned for a target whose platform has no registered source.
var ErrUnknownPlatform = errors.New("no source registered for platform")

// Target is one configured project of one platform.
type Target struct {
	Platform string
	Project  string
}

// Options configures correlation for every project of a run.
type Options struct {
	// Prefixes holds the prefix table per platform; missing platforms use
	// the built-in defaults.
	Prefixes        map[string]correlation.Prefixes
	ExtIssuePattern *regexp.Regexp
}

// ProjectResult is the correlation result of one project.
type ProjectResult struct {
	Platform string
	Project  domain.Project
	*correlation.Result
}

// Output is the concatenated result of a run over several projects.
type Output struct {
	RunID     string
	StartedAt time.Time
	Events    []eventlog.Event
	// Users merges every project's registry, last write wins.
	Users    map[string]string
	Projects []ProjectResult
	Failed   []Target
}

// Sink persists a run's output.
type Sink interface {
	Write(ctx context.Context, out *Output) error
}

// EventLogService fetches each project's entities and runs the correlation
// engine over them. Projects are processed sequentially, each with a fresh
// engine, and their outputs concatenated.
// Follows Single Responsibility Principle - orchestrates event log runs.
type EventLogService struct {
	sources map[string]api.Source // platform name -> source
	mu      sync.RWMutex

	opts    Options
	cache   *FileCache
	offline bool
	logger  *logging.StdLogger
}

// NewEventLogService creates a new event log service.
func NewEventLogService(opts Options, logger *logging.StdLogger) *EventLogService {
	return &EventLogService{
		sources: make(map[string]api.Source),
		opts:    opts,
		logger:  logger,
	}
}

// RegisterSource registers an ALM platform source under its platform name.
// Follows Open/Closed Principle - can add new platforms without modifying service.
func (s *EventLogService) RegisterSource(source api.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.Platform()] = source
}

// UseSnapshots saves every fetch into cache. When offline, entities are read
// from cache instead and no source is called.
func (s *EventLogService) UseSnapshots(cache *FileCache, offline bool) {
	s.cache = cache
	s.offline = offline
}

// Run processes targets in order. A project that cannot be fetched is logged
// and recorded in Output.Failed; cancellation aborts the run.
func (s *EventLogService) Run(ctx context.Context, targets []Target) (*Output, error) {
	out := &Output{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Users:     make(map[string]string),
	}
	s.logger.Infof("starting run %s over %d projects", out.RunID, len(targets))

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.RunProject(ctx, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Errorf("project %s/%s failed: %v", target.Platform, target.Project, err)
			out.Failed = append(out.Failed, target)
			continue
		}

		out.Projects = append(out.Projects, *result)
		out.Events = append(out.Events, result.Events...)
		for id, name := range result.Users {
			out.Users[id] = name
		}
	}

	s.logger.Infof("run %s finished: %d events, %d users, %d failed projects",
		out.RunID, len(out.Events), len(out.Users), len(out.Failed))
	return out, nil
}

// RunProject fetches and correlates a single project.
func (s *EventLogService) RunProject(ctx context.Context, target Target) (*ProjectResult, error) {
	snap, err := s.snapshot(ctx, target)
	if err != nil {
		return nil, err
	}

	prefixes, ok := s.opts.Prefixes[target.Platform]
	if !ok {
		prefixes = correlation.DefaultPrefixes(target.Platform)
	}

	engine := correlation.NewEngine(correlation.Options{
		Namespace:       snap.Project.Namespace,
		ProjectID:       target.Project,
		Prefixes:        prefixes,
		ExtIssuePattern: s.opts.ExtIssuePattern,
	}, s.logger.WithPrefix(target.Platform, snap.Project.Namespace))

	result, err := engine.Run(correlation.Batches{
		Issues:        snap.Issues,
		MergeRequests: snap.MergeRequests,
		Commits:       snap.Commits,
		Definitions:   snap.Definitions,
		Pipelines:     snap.Pipelines,
	})
	if err != nil {
		return nil, fmt.Errorf("correlation failed: %w", err)
	}
	if result.Skipped > 0 {
		s.logger.Warnf("project %s/%s: %d entities skipped", target.Platform, target.Project, result.Skipped)
	}

	return &ProjectResult{Platform: target.Platform, Project: snap.Project, Result: result}, nil
}

// snapshot returns the project's entities, from the cache when offline.
func (s *EventLogService) snapshot(ctx context.Context, target Target) (*Snapshot, error) {
	if s.offline {
		if s.cache == nil {
			return nil, fmt.Errorf("offline run without snapshot directory: %w", ErrNoSnapshot)
		}
		return s.cache.Load(target.Platform, target.Project)
	}

	s.mu.RLock()
	source, ok := s.sources[target.Platform]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, target.Platform)
	}

	snap, err := s.fetch(ctx, source, target)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Save(snap); err != nil {
			s.logger.Warnf("could not save snapshot of %s: %v", target.Project, err)
		}
	}
	return snap, nil
}

// fetch collects every batch of a project. The project itself is required
// for its namespace; any other listing that fails degrades to an empty batch.
func (s *EventLogService) fetch(ctx context.Context, source api.Source, target Target) (*Snapshot, error) {
	project, err := source.GetProject(ctx, target.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project.Namespace == "" {
		project.Namespace = project.ID
	}

	snap := &Snapshot{Platform: target.Platform, Target: target.Project, Project: project}

	if snap.Issues, err = source.GetIssues(ctx, target.Project); err != nil {
		if err := s.degrade(ctx, "issues", target, err); err != nil {
			return nil, err
		}
	}
	if snap.MergeRequests, err = source.GetMergeRequests(ctx, target.Project); err != nil {
		if err := s.degrade(ctx, "merge requests", target, err); err != nil {
			return nil, err
		}
	}
	if snap.Commits, err = source.GetCommits(ctx, target.Project); err != nil {
		if err := s.degrade(ctx, "commits", target, err); err != nil {
			return nil, err
		}
	}
	if defs, ok := source.(api.DefinitionSource); ok {
		if snap.Definitions, err = defs.GetPipelineDefinitions(ctx, target.Project); err != nil {
			if err := s.degrade(ctx, "pipeline definitions", target, err); err != nil {
				return nil, err
			}
		}
	}
	if snap.Pipelines, err = source.GetPipelines(ctx, target.Project); err != nil {
		if err := s.degrade(ctx, "pipelines", target, err); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// degrade logs a failed listing; only cancellation is fatal.
func (s *EventLogService) degrade(ctx context.Context, what string, target Target, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warnf("failed to fetch %s of %s, continuing without them: %v", what, target.Project, err)
	return nil
}

// Publish writes out to every sink, stopping at the first failure.
func (s *EventLogService) Publish(ctx context.Context, out *Output, sinks ...Sink) error {
	for _, sink := range sinks {
		if err := sink.Write(ctx, out); err != nil {
			return fmt.Errorf("failed to publish run %s: %w", out.RunID, err)
		}
	}
	return nil
}
