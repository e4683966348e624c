// Package logging provides the engine's structured diagnostic logger.
// It is deliberately separate from the journal (internal/journal): the
// journal is the append-only source of truth for run state, while this
// logger carries free-form operational detail (composition warnings,
// hook timeouts, session liveness checks) the way the teacher's
// internal/executor/logging.go turns every notable action into a
// structured record, retargeted here onto log/slog instead of a
// second event log.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the engine's conventional fields.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds a logger that writes structured (JSON) records to w.
func New(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that writes nowhere, for tests and
// sub-agents that don't need diagnostics.
func Discard() *Logger {
	return New(io.Discard)
}

// OpenFile opens (creating if absent, appending otherwise) the engine.log file at
// path for the duration of a run and returns a Logger bound to it.
// Callers must Close it when the run ends.
func OpenFile(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// Close releases the underlying file handle, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
