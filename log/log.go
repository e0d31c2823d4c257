// Package log provides the structured logger used throughout the engine.
//
// It mirrors go-ethereum's own log package: a thin wrapper over log/slog
// with package-level Trace/Debug/Info/Warn/Error helpers that take a message
// followed by alternating key/value pairs, e.g.:
//
//	log.Warn("peer stalling, dropping", "peer", id, "waited", waited)
package log

import (
	"context"
	"log/slog"
	"os"
)

// Level mirrors slog's levels with an extra Trace rung below Debug, matching
// go-ethereum's five-level scheme.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

var root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetDefault replaces the root logger, e.g. to redirect to a file handler or
// raise verbosity from a CLI flag.
func SetDefault(l *slog.Logger) {
	root = l
}

func Trace(msg string, ctx ...any) { root.Log(context.Background(), slog.Level(LevelTrace), msg, ctx...) }
func Debug(msg string, ctx ...any) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { root.Error(msg, ctx...) }

// New returns a logger scoped with the given static key/value pairs, the way
// go-ethereum's log.New(ctx...) produces a child logger for a subsystem.
func New(ctx ...any) *Logger {
	return &Logger{slog: root.With(ctx...)}
}

// Logger is a scoped handle returned by New, used the way per-peer or
// per-component loggers are threaded through the teacher's code
// (peer.log.Warn(...)).
type Logger struct {
	slog *slog.Logger
}

func (l *Logger) Trace(msg string, ctx ...any) {
	l.slog.Log(context.Background(), slog.Level(LevelTrace), msg, ctx...)
}
func (l *Logger) Debug(msg string, ctx ...any) { l.slog.Debug(msg, ctx...) }
func (l *Logger) Info(msg string, ctx ...any)  { l.slog.Info(msg, ctx...) }
func (l *Logger) Warn(msg string, ctx ...any)  { l.slog.Warn(msg, ctx...) }
func (l *Logger) Error(msg string, ctx ...any) { l.slog.Error(msg, ctx...) }
