// Package logging configures the global zerolog logger and emits the
// structured cold-start summary each Lambda logs once.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar selects the log level: debug, info, warn, error (default: info).
const LevelEnvVar = "ADCHECK_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// Inside Lambda output stays JSON so CloudWatch can index fields; elsewhere
// it is written through a console writer.
func Init() {
	SetLevel(os.Getenv(LevelEnvVar))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		out = os.Stdout
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLevel sets the global log level by name.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
