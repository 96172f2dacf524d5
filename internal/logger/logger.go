package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Logger struct {
	*slog.Logger
}

// New creates a JSON logger on stderr. Stdout is left to progress output.
func New(logLevel string) *Logger {
	return NewWithWriter(os.Stderr, logLevel)
}

func NewWithWriter(w io.Writer, logLevel string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(logLevel),
		AddSource: logLevel == "debug",
	}

	handler := slog.NewJSONHandler(w, opts)

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops every record
func Discard() *Logger {
	return NewWithWriter(io.Discard, "error")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
	}
}

func (l *Logger) SnapshotTaken(backend string, entries int, gateway string) {
	l.Debug("Route table snapshot taken",
		slog.String("backend", backend),
		slog.Int("entries", entries),
		slog.String("default_gateway", gateway))
}

func (l *Logger) PlanComputed(action string, adds, deletes int) {
	l.Info("Reconciliation plan computed",
		slog.String("action", action),
		slog.Int("to_add", adds),
		slog.Int("to_delete", deletes))
}

func (l *Logger) GroupFailed(action string, group, size int, err error) {
	l.Warn("Route group failed",
		slog.String("action", action),
		slog.Int("group", group),
		slog.Int("size", size),
		slog.Any("error", err))
}

func (l *Logger) BatchOperation(action string, total, groups, failed int, duration time.Duration) {
	l.Info("Batch operation completed",
		slog.String("action", action),
		slog.Int("total", total),
		slog.Int("groups", groups),
		slog.Int("failed_groups", failed),
		slog.Int64("duration_ms", duration.Milliseconds()))
}

func (l *Logger) CoverageComputed(blocks int, covered, total uint64, coverage float64) {
	l.Info("Route blocks computed",
		slog.Int("blocks", blocks),
		slog.Uint64("covered_addresses", covered),
		slog.Uint64("total_addresses", total),
		slog.Float64("coverage", coverage))
}

func (l *Logger) LockAcquired(path string, forced bool) {
	l.Debug("Operation lock acquired",
		slog.String("path", path),
		slog.Bool("forced", forced))
}
