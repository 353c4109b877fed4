// Package log provides structured logging for diabrisk on top of zerolog.
//
// The Logger interface keeps packages decoupled from the backend: estimators
// and the tuning driver only depend on Debug/Info/Warn/Error with key-value
// fields, while the provider decides formatting and destination.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logger emits.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ToLogLevel converts a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names fall back to info.
func ToLogLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a minimal structured logging interface. Fields are alternating
// key-value pairs; keys must be strings.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger with the given fields pre-populated.
	With(fields ...any) Logger
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

// ZerologProvider is a LoggerProvider backed by zerolog.
type ZerologProvider struct {
	root zerolog.Logger
}

// NewZerologProvider creates a provider writing console-formatted output to
// stderr at the given minimum level.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderTo(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// NewZerologProviderTo creates a provider writing to w. Used by tests to
// capture output.
func NewZerologProviderTo(w io.Writer, level Level) *ZerologProvider {
	root := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologProvider{root: root}
}

// GetLogger returns the unnamed root logger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{logger: p.root}
}

// GetLoggerWithName returns a logger tagged with a component name.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{logger: p.root.With().Str("component", name).Logger()}
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type zerologLogger struct {
	logger zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	emit(l.logger.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	emit(l.logger.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	emit(l.logger.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	emit(l.logger.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{logger: ctx.Logger()}
}

// emit applies alternating key-value fields to a zerolog event. A bare
// error value is attached under the "error" key; zerolog object marshallers
// (the pkg/errors types) are logged structurally.
func emit(event *zerolog.Event, msg string, fields []any) {
	i := 0
	for i < len(fields) {
		if err, ok := fields[i].(error); ok {
			if obj, ok := fields[i].(zerolog.LogObjectMarshaler); ok {
				event = event.Object("error", obj)
			} else {
				event = event.Err(err)
			}
			i++
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		event = event.Interface(key, fields[i+1])
		i += 2
	}
	event.Msg(msg)
}

// Nop returns a logger that discards everything. Handy as a default in
// library code when no provider is configured.
func Nop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}
