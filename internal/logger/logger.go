// ABOUTME: Structured logging configuration using log/slog.
// ABOUTME: Sends logs to stderr, or to a file while the full-screen UI owns the terminal.

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects level, format, and destination.
// Level: debug, info, warn, error (default: info)
// Format: text, json (default: text)
// Path: append to this file instead of writing to stderr
type Options struct {
	Level  string
	Format string
	Path   string
}

// Init configures the default slog logger. The returned function closes
// the log file, if one was opened; it is always safe to call.
func Init(opts Options) (func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
			return closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	slog.SetDefault(slog.New(NewHandler(w, opts)))
	return closer, nil
}

// NewHandler builds the handler Init installs.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
	}

	if strings.ToLower(opts.Format) == "json" {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
