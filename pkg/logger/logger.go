// Package logger provides a process-wide structured logger built on log/slog.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault())
}

// envReader abstracts environment lookups so tests can inject fakes without
// mutating process-global state.
type envReader interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func newDefault() *slog.Logger {
	return build(os.Stderr, levelFromEnv(osEnv{}), unstructuredLogsWithEnv(osEnv{}))
}

func build(w *os.File, level slog.Level, unstructured bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if unstructured {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func levelFromEnv(env envReader) slog.Level {
	switch strings.ToLower(env.Getenv("LOG_LEVEL")) {
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

// unstructuredLogsWithEnv reports whether UNSTRUCTURED_LOGS calls for the
// human-readable text handler. Defaults to true (unstructured) unless the
// variable is explicitly set to "false".
func unstructuredLogsWithEnv(env envReader) bool {
	v := env.Getenv("UNSTRUCTURED_LOGS")
	return v != "false"
}

// Initialize sets up the process-wide logger singleton from the environment.
func Initialize() {
	InitializeWithEnv(osEnv{})
}

// InitializeWithEnv sets up the singleton using the supplied environment
// reader, primarily so tests can control the outcome deterministically.
func InitializeWithEnv(env envReader) {
	singleton.Store(build(os.Stderr, levelFromEnv(env), unstructuredLogsWithEnv(env)))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Get().Debug(sprintf(format, args...)) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Get().Info(sprintf(format, args...)) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Get().Warn(sprintf(format, args...)) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Get().Error(sprintf(format, args...)) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// Fatalf logs a formatted message at error level, then exits the process.
func Fatalf(format string, args ...any) {
	Get().Error(sprintf(format, args...))
	os.Exit(1)
}

// Fatal logs a message at error level, then exits the process.
func Fatal(msg string) {
	Get().Error(msg)
	os.Exit(1)
}

// Panic logs a message at error level, then panics.
func Panic(msg string) {
	Get().Error(msg)
	panic(msg)
}

// Panicf logs a formatted message at error level, then panics.
func Panicf(format string, args ...any) {
	msg := sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

// Panicw logs a message with structured key/value pairs at error level, then panics.
func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

// DPanic logs at error level and panics only outside of production use; here
// it mirrors Panic since this package has no separate "development mode".
func DPanic(msg string) { Panic(msg) }

// DPanicf mirrors Panicf.
func DPanicf(format string, args ...any) { Panicf(format, args...) }

// DPanicw mirrors Panicw.
func DPanicw(msg string, kv ...any) { Panicw(msg, kv...) }

// WithContext returns a logger enriched with values pulled from ctx, reserved
// for future request-scoped fields (trace IDs, request IDs).
func WithContext(_ context.Context) *slog.Logger { return Get() }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
