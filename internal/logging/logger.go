// Package logging builds the slog loggers used across the statement cache packages.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures the default slog logger.
type Options struct {
	// Verbose enables debug level output.
	Verbose bool
	// Writer defaults to os.Stderr when nil.
	Writer io.Writer
}

// New constructs a text slog.Logger.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	return slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
}

// Logger is the logging surface the cache packages depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// FromSlog adapts logger, falling back to a NopLogger when logger is nil.
func FromSlog(logger *slog.Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}
	return &SlogAdapter{logger: logger}
}

// SlogAdapter adapts *slog.Logger to Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

func (s *SlogAdapter) Debug(msg string, args ...any) { s.logger.Debug(msg, args...) }

func (s *SlogAdapter) Info(msg string, args ...any) { s.logger.Info(msg, args...) }

func (s *SlogAdapter) Warn(msg string, args ...any) { s.logger.Warn(msg, args...) }

func (s *SlogAdapter) Error(msg string, args ...any) { s.logger.Error(msg, args...) }

// With returns a Logger carrying the given attributes.
func (s *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{logger: s.logger.With(args...)}
}

var _ Logger = (*SlogAdapter)(nil)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}

func (NopLogger) Info(string, ...any) {}

func (NopLogger) Warn(string, ...any) {}

func (NopLogger) Error(string, ...any) {}

func (n NopLogger) With(...any) Logger { return n }

var _ Logger = NopLogger{}
