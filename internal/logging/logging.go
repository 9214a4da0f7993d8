// Package logging builds the structured loggers used by the supervisor, the
// worker and the orchestrator. Loggers are always passed explicitly.
package logging

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
)

// LevelForVerbosity maps the V verbosity setting to a log level.
// 0 and 1 log at info (1 additionally echoes test output), 2 and above at debug.
func LevelForVerbosity(verbosity int) slog.Level {
	if verbosity >= 2 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a logger writing human-readable lines to w.
// Colors follow fatih/color's terminal detection.
func New(verbosity int, w io.Writer) *slog.Logger {
	return slog.New(NewHandler(w, LevelForVerbosity(verbosity), !color.NoColor))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(NewHandler(io.Discard, slog.LevelError+4, false))
}
