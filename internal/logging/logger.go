package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger on stderr. quiet drops everything below error.
func New(level string, quiet bool) *slog.Logger {
	return NewWithWriter(os.Stderr, level, quiet)
}

func NewWithWriter(w io.Writer, level string, quiet bool) *slog.Logger {
	lvl := ParseLevel(level)
	if quiet {
		lvl = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// WithPage returns a logger tagged with a page load.
func WithPage(logger *slog.Logger, url, pageID string) *slog.Logger {
	return logger.With("url", url, "page_id", pageID)
}
