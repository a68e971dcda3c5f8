// Package logging provides the leveled, prefixed logger shared by the
// connectors, the correlation engine and the command line.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTags = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// StdLogger wraps the standard log package with levels and a bracketed prefix.
// Child loggers created with WithPrefix share the underlying writer.
type StdLogger struct {
	out    *log.Logger
	min    Level
	prefix string
}

// New creates a logger writing to w. Messages below min are discarded.
func New(w io.Writer, min Level) *StdLogger {
	return &StdLogger{
		out: log.New(w, "", log.Ldate|log.Ltime),
		min: min,
	}
}

// NewStdLogger creates a logger on stderr; debug output only when verbose.
func NewStdLogger(verbose bool) *StdLogger {
	min := LevelInfo
	if verbose {
		min = LevelDebug
	}
	return New(os.Stderr, min)
}

// Discard returns a logger that drops every message.
func Discard() *StdLogger {
	return New(io.Discard, LevelError+1)
}

// WithPrefix returns a child logger tagging each line with [part] segments,
// appended to the parent's prefix.
func (l *StdLogger) WithPrefix(parts ...string) *StdLogger {
	var b strings.Builder
	b.WriteString(l.prefix)
	for _, p := range parts {
		b.WriteString("[")
		b.WriteString(p)
		b.WriteString("]")
	}
	return &StdLogger{out: l.out, min: l.min, prefix: b.String()}
}

// Prefix returns the bracketed prefix of this logger.
func (l *StdLogger) Prefix() string {
	return l.prefix
}

func (l *StdLogger) logf(level Level, format string, v ...interface{}) {
	if level < l.min {
		return
	}
	var b strings.Builder
	b.WriteString(levelTags[level])
	b.WriteString(": ")
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf(format, v...))
	l.out.Print(b.String())
}

// Debugf logs at debug level.
func (l *StdLogger) Debugf(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }

// Infof logs at info level.
func (l *StdLogger) Infof(format string, v ...interface{}) { l.logf(LevelInfo, format, v...) }

// Warnf logs at warning level.
func (l *StdLogger) Warnf(format string, v ...interface{}) { l.logf(LevelWarn, format, v...) }

// Errorf logs at error level.
func (l *StdLogger) Errorf(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

// Printf logs at info level, for callers that only know the Printf contract.
func (l *StdLogger) Printf(format string, v ...interface{}) { l.logf(LevelInfo, format, v...) }
