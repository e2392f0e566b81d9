// Package logger configures the process-wide zerolog logger, replacing
// the teacher's log/slog setup (internal/infrastructure/logger/logger.go)
// with zerolog to match the rest of the corpus's actual logging calls
// (github.com/rs/zerolog/log, used in factory.go and node_executors.go).
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger from a level name
// (debug/info/warn/error) and an output format ("console" for
// human-readable, anything else for JSON) and installs it as the
// package-level logger every other package logs through via
// github.com/rs/zerolog/log.
func Setup(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out zerolog.Logger
	if strings.EqualFold(format, "console") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		out = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	out = out.Level(parseLevel(level))
	log.Logger = out
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
