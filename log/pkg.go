package log

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// defaultLog writes to standard error so that records never interleave
// with rendered output on standard output.
var defaultLog atomic.Pointer[Logger]

// Default returns the package default logger.
func Default() Logger {
	if l := defaultLog.Load(); l != nil {
		return *l
	}

	l := Make(os.Stderr)
	defaultLog.CompareAndSwap(nil, &l)

	return *defaultLog.Load()
}

// Config replaces the default logger with one reconfigured by opts.
func Config(opts ...Option) {
	l := Default().Wrap(opts...)
	defaultLog.Store(&l)
}

// TraceContext logs at [LevelTrace] with the default logger.
func TraceContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().log(ctx, LevelTrace, msg, attrs)
}

// DebugContext logs at [LevelDebug] with the default logger.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().log(ctx, LevelDebug, msg, attrs)
}

// Debug logs at [LevelDebug] with the default logger.
func Debug(msg string, attrs ...slog.Attr) {
	Default().log(context.Background(), LevelDebug, msg, attrs)
}

// InfoContext logs at [LevelInfo] with the default logger.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().log(ctx, LevelInfo, msg, attrs)
}

// Info logs at [LevelInfo] with the default logger.
func Info(msg string, attrs ...slog.Attr) {
	Default().log(context.Background(), LevelInfo, msg, attrs)
}

// WarnContext logs at [LevelWarn] with the default logger.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().log(ctx, LevelWarn, msg, attrs)
}

// Warn logs at [LevelWarn] with the default logger.
func Warn(msg string, attrs ...slog.Attr) {
	Default().log(context.Background(), LevelWarn, msg, attrs)
}

// ErrorContext logs at [LevelError] with the default logger.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().log(ctx, LevelError, msg, attrs)
}

// Error logs at [LevelError] with the default logger.
func Error(msg string, attrs ...slog.Attr) {
	Default().log(context.Background(), LevelError, msg, attrs)
}
