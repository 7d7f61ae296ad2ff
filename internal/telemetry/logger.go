// Package telemetry builds the zerolog.Logger shared by the GCS and SQS
// subsystems, matching the component-scoped injection pattern used
// throughout the retrieved GCS streaming/chunked-upload components.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the root logger renders output.
type Options struct {
	// Level is parsed with zerolog.ParseLevel; an empty or invalid
	// value falls back to zerolog.InfoLevel.
	Level string
	// Pretty switches from newline-delimited JSON to a human-readable
	// console writer, for local development.
	Pretty bool
	Output io.Writer
}

// New builds the root logger. Call .With().Str("component", name).Logger()
// on the result to scope it the way gcp_streamer.go and the chunked
// upload handler do.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
