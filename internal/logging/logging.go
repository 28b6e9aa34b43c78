// Package logging builds the process-wide zerolog.Logger, following the
// field-typed logging convention shown across the retrieval pack (a
// zerolog.Logger held and passed by value, never a package-global
// singleton reached for implicitly).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls how New builds a logger.
type Options struct {
	// Level is one of zerolog's level names (trace, debug, info, warn,
	// error, fatal, panic, disabled). Unrecognized or empty falls back
	// to info.
	Level string

	// Pretty selects zerolog's ConsoleWriter (human-readable, colored)
	// instead of raw JSON lines. Meant for local/interactive runs; a
	// deployed process should leave this false and let JSON go to its
	// log collector.
	Pretty bool

	// Writer overrides the output sink; os.Stdout when nil.
	Writer io.Writer
}

// New builds a zerolog.Logger from opts, stamping it with a component
// field so every log line from the runtime is attributable.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	level := parseLevel(opts.Level)

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", "reactorhttp").
		Logger()
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
