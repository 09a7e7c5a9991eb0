// Package slogger configures the process-wide slog logger.
//
// Valid levels: "debug", "info", "warn", "error". Default: "info".
// Output always goes to stderr so stdout stays parseable (--json).
package slogger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level holds the dynamic log level so it can be queried at runtime.
var level = new(slog.LevelVar)

// Options selects the level and handler format
type Options struct {
	Level  string
	Format string // "text" or "json"
	Writer io.Writer
}

// Init builds a logger from opts, falling back to LOG_LEVEL and
// PATCHVERIFY_LOG_LEVEL when no level is given, and installs it as default.
func Init(opts Options) *slog.Logger {
	lvl := opts.Level
	if lvl == "" {
		lvl = os.Getenv("PATCHVERIFY_LOG_LEVEL")
	}
	if lvl == "" {
		lvl = os.Getenv("LOG_LEVEL")
	}
	level.Set(ParseLevel(lvl))

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Level returns the current slog.Level.
func Level() slog.Level {
	return level.Level()
}

// IsDebug returns true when the current log level is debug or lower.
func IsDebug() bool {
	return Level() <= slog.LevelDebug
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
