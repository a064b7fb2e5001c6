package cspace

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with cspace-specific context.
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

// WithSpace adds the space instance ID to the logger.
func (l *Logger) WithSpace(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", id),
	}
}

// WithManifold adds manifold name and dimension fields to the logger.
func (l *Logger) WithManifold(m Manifold) *Logger {
	return &Logger{
		Logger: l.Logger.With("manifold", m.Name(), "dimension", m.Dimension()),
	}
}

// LogSetup logs the result of binding a manifold to an allocator.
func (l *Logger) LogSetup(ctx context.Context, stateSize, shards int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "space setup failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "space ready",
			"state_size", stateSize,
			"shards", shards,
		)
	}
}

// LogClose logs a space teardown.
func (l *Logger) LogClose(ctx context.Context, stats Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "space close failed",
			"error", err,
		)
		return
	}
	if stats.Live > 0 {
		l.WarnContext(ctx, "space closed with live states",
			"live", stats.Live,
			"bytes_reserved", stats.BytesReserved,
		)
		return
	}
	l.DebugContext(ctx, "space closed",
		"allocs", stats.Allocs,
		"bytes_reserved", stats.BytesReserved,
	)
}

// LogAllocFailure logs an allocation that could not obtain memory.
func (l *Logger) LogAllocFailure(ctx context.Context, requested int, err error) {
	l.ErrorContext(ctx, "state allocation failed",
		"requested_slots", requested,
		"error", err,
	)
}
