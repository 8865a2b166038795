// Package logger provides a thin wrapper around zerolog.Logger configured
// from the application settings.
//
// The Logger type embeds zerolog.Logger so all standard zerolog methods
// (Debug, Info, Warn, Error, Fatal, etc.) are available directly on *Logger.
// Application code receives a *Logger explicitly and obtains request-scoped
// loggers via FromContext or FromRequest.
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emaforlin/ivr-ws-service/config"
)

// textTimeFormat is the timestamp layout used by the human-readable console
// format.
const textTimeFormat = "2006-01-02 15:04:05"

// Logger is a thin wrapper around zerolog.Logger.
// Embedding zerolog.Logger exposes the full zerolog API while allowing the
// application to add helper methods without modifying the upstream type.
type Logger struct {
	zerolog.Logger
}

// New constructs a *Logger from the application settings.
//
// The output format follows cfg.LogFormat: "json" writes one JSON object per
// line to stdout, "text" writes human-readable console lines. Entries below
// cfg.LogLevel are discarded on this instance; the global zerolog level is
// left untouched.
//
// Every entry carries a "time" timestamp and a "func" caller field that
// records the fully-qualified function name instead of the default file:line
// format.
func New(cfg *config.Settings) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	var out io.Writer = os.Stdout
	if cfg.LogFormat == config.FormatText {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: textTimeFormat}
	}

	l := zerolog.New(out).
		Level(toZerologLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// Nop returns a *Logger that discards all log output.
// It is intended for use in tests and other contexts where logging is
// undesirable or would produce noise.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Named returns a child *Logger carrying a "component" field. The child
// inherits all fields and the level of the receiver.
func (l *Logger) Named(component string) *Logger {
	return &Logger{l.With().Str("component", component).Logger()}
}

// FromRequest extracts the zerolog.Logger stored in the request's context by
// zerolog's log.Ctx helper and returns it as a *Logger.
//
// This is typically used in handlers after middleware has attached a
// request-scoped logger to the context via zerolog's WithContext.
func FromRequest(r *http.Request) *Logger {
	return &Logger{*log.Ctx(r.Context())}
}

// FromContext extracts the zerolog.Logger stored in ctx by zerolog's log.Ctx
// helper and returns it as a *Logger.
//
// If no logger has been attached to ctx, zerolog returns its global logger,
// so this function never returns nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}

// toZerologLevel maps a configured level name onto the zerolog scale.
// CRITICAL maps to zerolog's Fatal level, the closest severity zerolog
// offers. Note zerolog's Fatal() method exits the process; emitting an
// entry at that severity without exiting requires WithLevel.
func toZerologLevel(level config.LogLevel) zerolog.Level {
	switch level {
	case config.LevelDebug:
		return zerolog.DebugLevel
	case config.LevelInfo:
		return zerolog.InfoLevel
	case config.LevelWarning:
		return zerolog.WarnLevel
	case config.LevelError:
		return zerolog.ErrorLevel
	case config.LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
