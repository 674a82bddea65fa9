// Package logging configures the global zerolog logger and provides the
// structured cold-start summary emitted by each Lambda.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar names the environment variable holding the log level.
const LevelEnvVar = "PRODUCTIVITY_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// PRODUCTIVITY_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	InitWithLevel(os.Getenv(LevelEnvVar), os.Stderr)
}

// InitWithLevel initializes the global logger at the given level, writing
// console-formatted output to w. The CLI uses it so --log-level can
// override the environment.
func InitWithLevel(level string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level. Unknown names, including
// the empty string, select info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
