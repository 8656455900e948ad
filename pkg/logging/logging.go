// Package logging constructs the slog logger used across the service.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures the default logger.
type Options struct {
	// Verbose toggles debug level logging when true.
	Verbose bool
	// JSON selects the JSON handler instead of text.
	JSON bool
	// Writer directs log output; defaults to os.Stderr when nil.
	Writer io.Writer
}

// New constructs a slog.Logger with service defaults.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Useful in tests and as
// a default for optional logger fields.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
