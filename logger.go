package geokv

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/geokv/model"
)

// Logger wraps slog.Logger with geokv-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithAdapter adds an adapter field to the logger.
func (l *Logger) WithAdapter(id model.AdapterID) *Logger {
	return &Logger{
		Logger: l.Logger.With("adapter", string(id)),
	}
}

// WithIndex adds an index field to the logger.
func (l *Logger) WithIndex(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", id),
	}
}

// LogWrite logs a write of count entries.
func (l *Logger) LogWrite(ctx context.Context, adapterID model.AdapterID, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"adapter", string(adapterID),
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"adapter", string(adapterID),
			"count", count,
		)
	}
}

// LogQuery logs a finished query.
func (l *Logger) LogQuery(ctx context.Context, adapterID model.AdapterID, emitted int, pushDown bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"adapter", string(adapterID),
			"emitted", emitted,
			"push_down", pushDown,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"adapter", string(adapterID),
			"emitted", emitted,
			"push_down", pushDown,
		)
	}
}

// LogFlush logs a memtable flush.
func (l *Logger) LogFlush(ctx context.Context, segments int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"segments", segments,
			"duration", duration,
		)
	}
}

// LogCompact logs a compaction.
func (l *Logger) LogCompact(ctx context.Context, before, after int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed",
			"segments", before,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "compaction completed",
			"segments_before", before,
			"segments_after", after,
		)
	}
}
