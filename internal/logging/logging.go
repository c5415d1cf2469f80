package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Format "pretty" is for local development;
// anything else emits JSON lines.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "chatlytics").
		Logger()
}

// TemporalAdapter exposes a zerolog logger through the Temporal SDK's
// log.Logger interface so workflow and activity logs share one sink.
type TemporalAdapter struct {
	log zerolog.Logger
}

func NewTemporalAdapter(l zerolog.Logger) *TemporalAdapter {
	return &TemporalAdapter{log: l.With().Str("component", "temporal").Logger()}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	emit(a.log.Debug(), msg, keyvals)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	emit(a.log.Info(), msg, keyvals)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	emit(a.log.Warn(), msg, keyvals)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	emit(a.log.Error(), msg, keyvals)
}

func emit(e *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}
