// Package eventlog accumulates validated, normalized event records together
// with the user reference registry built from their actors.
package eventlog

import (
	"github.com/vilaca/alm-eventlog/internal/domain"
)

// Event is one normalized record of the cross-system event log.
type Event struct {
	ID        string  `json:"id"`
	Action    string  `json:"action"`
	Time      string  `json:"time"`
	Case      string  `json:"case"`
	User      string  `json:"user"`
	UserRef   string  `json:"user_ref"`
	LocalCase string  `json:"local_case"`
	Info1     string  `json:"info1"`
	Info2     string  `json:"info2"`
	Namespace string  `json:"ns"`
	Duration  float64 `json:"duration"`
}

// missingField returns the name of the first empty required field, or "".
func (e Event) missingField() string {
	switch {
	case e.ID == "":
		return "id"
	case e.Action == "":
		return "action"
	case e.Time == "":
		return "time"
	case e.Case == "":
		return "case"
	case e.User == "":
		return "user"
	case e.UserRef == "":
		return "user_ref"
	case e.LocalCase == "":
		return "local_case"
	}
	return ""
}

// Logger receives validation rejections.
type Logger interface {
	Warnf(format string, v ...interface{})
}

// Log is an append-only event log with a user reference registry.
// It is not safe for concurrent use.
type Log struct {
	events          []Event
	users           map[string]string
	total           int
	sinceCheckpoint int
	logger          Logger
}

// New creates an empty log.
func New(logger Logger) *Log {
	return &Log{
		users:  make(map[string]string),
		logger: logger,
	}
}

// Add validates e and appends it. A record with an empty required field or a
// time that is not ISO-8601 shaped is dropped whole and Add returns false.
func (l *Log) Add(e Event) (Event, bool) {
	if field := e.missingField(); field != "" {
		l.logger.Warnf("dropping %q event %q: missing %s", e.Action, e.ID, field)
		return Event{}, false
	}
	if !domain.IsISOTime(e.Time) {
		l.logger.Warnf("dropping %q event %q: time %q is not ISO-8601", e.Action, e.ID, e.Time)
		return Event{}, false
	}

	l.users[e.User] = e.UserRef
	l.events = append(l.events, e)
	l.total++
	l.sinceCheckpoint++
	return e, true
}

// AddedEventCount returns the number of events added since the previous call
// and resets that counter.
func (l *Log) AddedEventCount() int {
	n := l.sinceCheckpoint
	l.sinceCheckpoint = 0
	return n
}

// Total returns the number of events accepted over the log's lifetime.
func (l *Log) Total() int {
	return l.total
}

// Events returns the accepted events in insertion order.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Users returns a copy of the actor id to display name registry.
func (l *Log) Users() map[string]string {
	out := make(map[string]string, len(l.users))
	for k, v := range l.users {
		out[k] = v
	}
	return out
}
