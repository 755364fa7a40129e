package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger described by the log settings. It
// falls back to info level on an invalid level.
func NewLogger(w io.Writer, lc LogConfig) *slog.Logger {
	level, err := ParseLevel(lc.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
