// Package logger is the logging surface of repositories and the statement
// executor. Any structured key-value logger fits; log/slog is adapted.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Logger receives structured entries as a message plus alternating keys and
// values, the convention of log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default of a DB.
type NoopLogger struct{}

func (*NoopLogger) Debug(string, ...any) {}
func (*NoopLogger) Info(string, ...any)  {}
func (*NoopLogger) Warn(string, ...any)  {}
func (*NoopLogger) Error(string, ...any) {}

// SlogAdapter logs through an *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter adapts l. A nil l logs to slog.Default.
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogAdapter{logger: l}
}

// NewTextLogger writes logfmt lines at or above level to w.
func NewTextLogger(w io.Writer, level slog.Level) *SlogAdapter {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (a *SlogAdapter) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.Log(ctx, level, msg, args...)
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.log(slog.LevelDebug, msg, args) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.log(slog.LevelInfo, msg, args) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.log(slog.LevelWarn, msg, args) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.log(slog.LevelError, msg, args) }

// With returns a logger that adds args to every entry. Slog adapters keep
// the attributes in the handler; other loggers get them prepended per call.
func With(l Logger, args ...any) Logger {
	if len(args) == 0 {
		return l
	}
	switch v := l.(type) {
	case nil, *NoopLogger:
		return &NoopLogger{}
	case *SlogAdapter:
		return &SlogAdapter{logger: v.logger.With(args...)}
	default:
		return &contextLogger{next: l, args: args}
	}
}

type contextLogger struct {
	next Logger
	args []any
}

func (c *contextLogger) merge(args []any) []any {
	out := make([]any, 0, len(c.args)+len(args))
	return append(append(out, c.args...), args...)
}

func (c *contextLogger) Debug(msg string, args ...any) { c.next.Debug(msg, c.merge(args)...) }
func (c *contextLogger) Info(msg string, args ...any)  { c.next.Info(msg, c.merge(args)...) }
func (c *contextLogger) Warn(msg string, args ...any)  { c.next.Warn(msg, c.merge(args)...) }
func (c *contextLogger) Error(msg string, args ...any) { c.next.Error(msg, c.merge(args)...) }
