package cairngo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with boundary-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name),
	}
}

// WithOp adds an operation field to the logger.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// LogConnect logs a connect attempt.
func (l *Logger) LogConnect(ctx context.Context, uri string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "connect failed",
			"uri", uri,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "connected",
			"uri", uri,
		)
	}
}

// LogAppend logs a data append operation.
func (l *Logger) LogAppend(ctx context.Context, table string, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"table", table,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "append completed",
			"table", table,
			"rows", rows,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, table string, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"table", table,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"table", table,
			"rows", rows,
		)
	}
}

// LogFault logs a contained runtime fault with its stack.
func (l *Logger) LogFault(ctx context.Context, op string, recovered any, stack []byte) {
	l.ErrorContext(ctx, "fault contained",
		"op", op,
		"panic", recovered,
		"stack", string(stack),
	)
}
