// Package logging is FINJA's one ambient concern intentionally kept on
// the standard library log package: the teacher reports CLI progress
// with plain fmt/log calls rather than a structured logger, and nothing
// else in the pack shows a leveled logger at this scale.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger writes plain lines with no prefix, in the "<path>: <verb>"
// phrasing spec.md §7 specifies for user-visible output. It records the
// current operation name in op; that name is not printed.
type Logger struct {
	*log.Logger
	op string
}

// New creates a Logger writing to w (os.Stdout in production, a buffer in
// tests).
func New(w io.Writer, op string) *Logger {
	return &Logger{Logger: log.New(w, "", 0), op: op}
}

// Default is a convenience constructor writing to stdout.
func Default(op string) *Logger {
	return New(os.Stdout, op)
}

// Skip logs a "<path>: <reason>" line, the shape every skip message in
// spec.md §7 takes.
func (l *Logger) Skip(path, reason string) {
	l.Printf("%s: %s", path, reason)
}

// Progress logs a free-form status line.
func (l *Logger) Progress(format string, args ...any) {
	l.Printf(format, args...)
}

// WithOp returns a copy of the logger tagged with a different operation
// name, for nested phases (e.g. the second reindex pass).
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{Logger: l.Logger, op: op}
}
