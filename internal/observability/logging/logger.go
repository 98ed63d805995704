package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

func NewJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// NewConsoleLogger writes text lines to stderr, leaving stdout to command
// output.
func NewConsoleLogger(service, level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// NewRunLogger writes human readable lines to stderr and JSON lines to a
// per-run file under dir. If the file cannot be opened the logger falls back
// to stderr only.
func NewRunLogger(service, level, dir, runID string) (*slog.Logger, func() error) {
	lvl := parseLevel(level)
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger := slog.New(stderrHandler).With("service", service, "run_id", runID)
		logger.Warn("run log directory unavailable", "dir", dir, "error", err)
		return logger, func() error { return nil }
	}
	path := filepath.Join(dir, "run_"+runID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderrHandler).With("service", service, "run_id", runID)
		logger.Warn("run log file unavailable", "path", path, "error", err)
		return logger, func() error { return nil }
	}

	logger := NewFanoutLogger(os.Stderr, file, level).With("service", service, "run_id", runID)
	return logger, file.Close
}

// NewFanoutLogger sends text to console and JSON to file.
func NewFanoutLogger(console, file io.Writer, level string) *slog.Logger {
	lvl := parseLevel(level)
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: lvl}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl}),
	))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
