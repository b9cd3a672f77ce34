package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions controls the rotating log file used by the CLI.
type FileOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileLogger returns a SlogLogger that writes text records to a
// size-rotated file, plus the writer so callers can close it on exit.
func NewFileLogger(opts FileOptions) (*SlogLogger, io.WriteCloser) {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    nonZero(opts.MaxSizeMB, 10),
		MaxBackups: nonZero(opts.MaxBackups, 3),
		MaxAge:     nonZero(opts.MaxAgeDays, 28),
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseSlogLevel(opts.Level)})
	return NewSlogLogger(slog.New(h)), w
}

// ParseSlogLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is treated as info.
func ParseSlogLevel(level string) slog.Level {
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

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
