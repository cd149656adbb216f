// Package logger builds the structured logger shared by the orchestrator
// and runner processes: a single slog.Logger fanned out to one or more
// handlers via slog-multi, so the same log call lands on both an
// interactive text stream and an optional JSON file sink.
package logger

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures the fan-out.
type Options struct {
	// Level is the minimum level emitted by every handler.
	Level slog.Level
	// JSON switches the console handler from text to JSON (used by the
	// runner daemon, which is usually consumed by a process supervisor
	// rather than a terminal).
	JSON bool
	// FilePath, if non-empty, adds a JSON file handler alongside the
	// console handler.
	FilePath string
}

// Build constructs a *slog.Logger per opts. The returned closer flushes
// and closes any file sink; callers should defer it.
func Build(opts Options) (*slog.Logger, func() error, error) {
	handlers := []slog.Handler{consoleHandler(os.Stderr, opts)}
	closer := func() error { return nil }

	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level}))
		closer = f.Close
	}

	handler := slogmulti.Fanout(handlers...)
	return slog.New(handler), closer, nil
}

func consoleHandler(w io.Writer, opts Options) slog.Handler {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

// Default returns a logger suitable for contexts where no explicit
// configuration is threaded through yet (library default, matching the
// fallback used throughout this codebase's newest-generation API layer).
func Default() *slog.Logger {
	return slog.Default()
}
