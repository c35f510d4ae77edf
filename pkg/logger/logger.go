// Package logger provides structured logging for platform services.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a leveled, structured logger scoped to a service.
type Logger struct {
	zl zerolog.Logger
}

// NewDefault creates a logger for the given service writing JSON to stderr.
// The level is taken from LOG_LEVEL (debug, info, warn, error), defaulting
// to info.
func NewDefault(serviceID string) *Logger {
	return New(serviceID, os.Stderr, levelFromEnv())
}

// New creates a logger for the given service writing to w.
func New(serviceID string, w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", serviceID).
		Logger()
	return &Logger{zl: zl}
}

// With returns a logger with additional key/value pairs attached to every
// event. Keys must be strings; a dangling key is ignored.
func (l *Logger) With(kv ...any) *Logger {
	ctx := l.zl.With()
	for k, v := range pairs(kv) {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, kv ...any) { l.emit(l.zl.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.emit(l.zl.Info(), msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.emit(l.zl.Warn(), msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.emit(l.zl.Error(), msg, kv) }

func (l *Logger) emit(ev *zerolog.Event, msg string, kv []any) {
	for k, v := range pairs(kv) {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func pairs(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
