// Package correlation resolves the case identifier of every issue, merge
// request, commit and pipeline event of one project.
//
// Resolution runs in four strictly ordered phases. Each phase reads the
// registries filled by the phases before it:
//
//	issues -> merge requests -> commits -> pipelines
//
// An issue is always its own case. A merge request joins the case of the issue
// that closes it (or that alone mentions it). A commit joins the case of the
// merge request it belongs to, and a pipeline joins the case of the commit
// that triggered it.
package correlation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
)

// Logger interface for logging operations (Interface Segregation Principle).
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// ErrMissingField marks an entity lacking a field the engine needs.
var ErrMissingField = errors.New("missing field")

// EntityError reports a single entity that was skipped.
type EntityError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// Options configures an Engine for one project.
type Options struct {
	// Namespace is prefixed into every case id and stamped on every event.
	Namespace string
	ProjectID string
	Prefixes  Prefixes
	// ExtIssuePattern finds external tracker references; its first group is kept.
	ExtIssuePattern *regexp.Regexp
}

// Batches holds the entities of one project in phase order.
type Batches struct {
	Issues        []domain.Issue
	MergeRequests []domain.MergeRequest
	Commits       []domain.Commit
	Definitions   []domain.PipelineDefinition
	Pipelines     []domain.Pipeline
}

// Engine runs the phased correlation of one project. It is single-use and not
// safe for concurrent use.
type Engine struct {
	opts   Options
	gen    CaseIDGenerator
	ctx    *Context
	log    *eventlog.Log
	logger Logger

	issues        []IssueRecord
	mergeRequests []MergeRequestRecord
	commits       []CommitRecord
	pipelines     []PipelineRecord
	skipped       int
}

// NewEngine creates an engine with a fresh Context for opts.Namespace.
func NewEngine(opts Options, logger Logger) *Engine {
	return &Engine{
		opts:   opts,
		gen:    CaseIDGenerator{Namespace: opts.Namespace, Prefixes: opts.Prefixes},
		ctx:    NewContext(opts.Namespace),
		log:    eventlog.New(logger),
		logger: logger,
	}
}

// Context exposes the engine's registries and caches.
func (e *Engine) Context() *Context {
	return e.ctx
}

// Generator returns the case-id generator of the project.
func (e *Engine) Generator() CaseIDGenerator {
	return e.gen
}

// Run executes all four phases in order and returns the result.
func (e *Engine) Run(b Batches) (*Result, error) {
	if err := e.ProcessIssues(b.Issues); err != nil {
		return nil, err
	}
	if err := e.ProcessMergeRequests(b.MergeRequests); err != nil {
		return nil, err
	}
	if err := e.ProcessCommits(b.Commits); err != nil {
		return nil, err
	}
	if err := e.ProcessPipelines(b.Definitions, b.Pipelines); err != nil {
		return nil, err
	}
	return e.Result(), nil
}

// Result returns what has been produced so far.
func (e *Engine) Result() *Result {
	return &Result{
		Namespace:     e.opts.Namespace,
		Events:        e.log.Events(),
		Users:         e.log.Users(),
		Issues:        e.issues,
		MergeRequests: e.mergeRequests,
		Commits:       e.commits,
		Pipelines:     e.pipelines,
		Skipped:       e.skipped,
	}
}

// guard runs fn for one entity; a failure skips that entity only.
func (e *Engine) guard(kind Kind, id string, fn func() error) {
	if err := fn(); err != nil {
		e.skipped++
		entityErr := &EntityError{Kind: kind, ID: id, Err: err}
		e.logger.Errorf("error occurred retrieving data for %v, moving to next", entityErr)
	}
}

func (e *Engine) progress(kind Kind, done, total int) {
	e.logger.Debugf("%s %d/%d processed, events added: %d", kind, done, total, e.log.AddedEventCount())
}

// addEvent stamps the namespace and appends to the log.
func (e *Engine) addEvent(ev eventlog.Event) bool {
	ev.Namespace = e.opts.Namespace
	_, ok := e.log.Add(ev)
	return ok
}

func (e *Engine) extIssueID(texts ...string) string {
	if e.opts.ExtIssuePattern == nil {
		return ""
	}
	for _, text := range texts {
		m := e.opts.ExtIssuePattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			e.logger.Debugf("found reference to external issue id: %s", m[1])
			return m[1]
		}
		return m[0]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
