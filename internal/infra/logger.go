package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages outside infra can accept a logger
// without importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger constructs the service logger. Development builds get a console
// writer at debug level; everything else emits JSON at info level.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv)
}

func newLogger(out io.Writer, appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "bouquet").
		Logger()
}

// NopLogger returns a logger that discards everything; used as the default
// when a component is constructed without one.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
