// Package logging provides the shared zerolog setup used across imapkit:
// a single base logger with console-friendly output, and a per-package
// "component" field so log lines can be filtered by subsystem.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

// SetLevel adjusts the minimum level for the base logger; components
// derived afterwards inherit it.
func SetLevel(lvl zerolog.Level) {
	base = base.Level(lvl)
}

// WithComponent returns a logger tagged with the given component name,
// derived from the package base logger.
func WithComponent(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// FromLogger derives a component logger from a caller-supplied base logger
// instead of the package default, for callers that already manage their own
// zerolog.Logger (e.g. Options.Logger).
func FromLogger(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
