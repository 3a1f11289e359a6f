// Package logger carries the executor's logging surface: a minimal structured
// Logger, a no-op default, and the Sanitizer that masks command arguments
// before they reach a log line.
package logger

import "log/slog"

// Logger receives command activity from the executor. Args alternate keys and
// values, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

func (*NoopLogger) Debug(string, ...any) {}
func (*NoopLogger) Info(string, ...any)  {}
func (*NoopLogger) Warn(string, ...any)  {}
func (*NoopLogger) Error(string, ...any) {}

var _ Logger = (*NoopLogger)(nil)

// SlogAdapter forwards to a *slog.Logger.
type SlogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter wraps l, which must not be nil.
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	return &SlogAdapter{l: l}
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
