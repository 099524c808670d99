package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct{ values map[string]string }

func (f fakeEnv) Getenv(key string) string { return f.values[key] }

func setSingletonForTest(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := singleton.Load()
	singleton.Store(l)
	t.Cleanup(func() { singleton.Store(prev) })
}

func TestUnstructuredLogsCheck(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"Default Case", "", true},
		{"Explicitly True", "true", true},
		{"Explicitly False", "false", false},
		{"Invalid Value", "not-a-bool", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unstructuredLogsWithEnv(fakeEnv{values: map[string]string{"UNSTRUCTURED_LOGS": tt.envValue}})
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogLevels(t *testing.T) { //nolint:paralleltest // mutates singleton
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debug", func() { Debug("debug msg") }, "debug msg"},
		{"Debugf", func() { Debugf("debug %s", "formatted") }, "debug formatted"},
		{"Debugw", func() { Debugw("debug kv", "key", "val") }, "debug kv"},
		{"Info", func() { Info("info msg") }, "info msg"},
		{"Infof", func() { Infof("info %s", "formatted") }, "info formatted"},
		{"Infow", func() { Infow("info kv", "key", "val") }, "info kv"},
		{"Warn", func() { Warn("warn msg") }, "warn msg"},
		{"Error", func() { Error("error msg") }, "error msg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			setSingletonForTest(t, l)

			tc.logFn()

			assert.Contains(t, buf.String(), tc.contains)
		})
	}
}

func TestPanicFunctions(t *testing.T) { //nolint:paralleltest // mutates singleton
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	setSingletonForTest(t, l)

	require.Panics(t, func() { Panic("panic msg") })
	assert.Contains(t, buf.String(), "panic msg")
}

func TestGet(t *testing.T) { //nolint:paralleltest // mutates singleton
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	setSingletonForTest(t, l)

	got := Get()
	require.NotNil(t, got)

	got.Info("get test")
	assert.Contains(t, buf.String(), "get test")
}

func TestInitializeWithEnv(t *testing.T) { //nolint:paralleltest // mutates singleton
	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	InitializeWithEnv(fakeEnv{values: map[string]string{"UNSTRUCTURED_LOGS": "false", "LOG_LEVEL": "debug"}})

	got := singleton.Load()
	require.NotNil(t, got)
}
