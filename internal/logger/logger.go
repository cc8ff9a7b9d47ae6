// Package logger builds the zerolog loggers shared by the HTTP layer,
// services and startup code. Every entry is a single JSON line whose
// timestamp is rendered in the configured location under the "ts" key.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a JSON logger writing to stdout.
func New(level string, loc *time.Location) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, loc)
}

// NewWithWriter returns a JSON logger writing to w.
// Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	if loc == nil {
		loc = time.UTC
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		Hook(timestampHook{loc: loc})
}

// LoadLocation resolves a timezone name, defaulting to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type timestampHook struct {
	loc *time.Location
}

func (h timestampHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str(zerolog.TimestampFieldName, time.Now().In(h.loc).Format(time.RFC3339Nano))
}
