package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLogger(t *testing.T) {
	var l Logger = &NoopLogger{}
	assert.NotPanics(t, func() {
		l.Debug("get", "entity", "Invoice")
		l.Info("query executed")
		l.Warn("repository action rejected", "reason", "locked")
		l.Error("query execution failed", "error", nil)
	})
}

func TestSlogAdapter_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(Logger)
	}{
		{"DEBUG", func(l Logger) { l.Debug("repository action", "action", "get") }},
		{"INFO", func(l Logger) { l.Info("query executed", "action", "get") }},
		{"WARN", func(l Logger) { l.Warn("repository action rejected", "action", "get") }},
		{"ERROR", func(l Logger) { l.Error("query execution failed", "action", "get") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "get", entry["action"])
		})
	}
}

func TestSlogAdapter_NilUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	NewSlogAdapter(nil).Info("query executed", "rows_affected", 1)
	assert.Contains(t, buf.String(), "rows_affected=1")
}

func TestNewTextLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelWarn)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith_SlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := With(NewTextLogger(&buf, slog.LevelDebug), "entity", "Invoice")

	l.Debug("save", "action", "insert")

	out := buf.String()
	assert.Contains(t, out, "entity=Invoice")
	assert.Contains(t, out, "action=insert")
	assert.Contains(t, out, "level=DEBUG")
}

type recordingLogger struct {
	NoopLogger
	args []any
}

func (r *recordingLogger) Info(_ string, args ...any) { r.args = args }

func TestWith_CustomLogger(t *testing.T) {
	rec := &recordingLogger{}
	With(rec, "entity", "Invoice").Info("get", "key", 5)

	assert.Equal(t, []any{"entity", "Invoice", "key", 5}, rec.args)
}

func TestWith_Noop(t *testing.T) {
	assert.IsType(t, &NoopLogger{}, With(nil, "a", 1))
	assert.IsType(t, &NoopLogger{}, With(&NoopLogger{}, "a", 1))

	l := &NoopLogger{}
	assert.Same(t, l, With(l))
}

func BenchmarkSlogAdapter_Disabled(b *testing.B) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelInfo)

	for i := 0; i < b.N; i++ {
		l.Debug("repository action", "action", "get", "sql", "SELECT id AS Id FROM invoice WHERE id = @id")
	}
}
