// Package config loads process configuration from environment variables,
// following the teacher's internal/infrastructure/config/config.go
// pattern (plain os.LookupEnv with typed fallbacks), extended with the
// kernel's own tunables: the rule engine's fire budget, history ring
// size, and provenance verbosity.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/longtable/longtable/internal/provenance"
)

// Config holds every environment-driven setting the kernel reads at
// startup.
type Config struct {
	LogLevel  string
	LogFormat string

	DatabaseDSN string

	// MaxRuleFires bounds a single tick's rule engine run
	// (SemanticLimit::MaxRuleFires); exceeding it fails the tick with
	// QuiescenceExceeded.
	MaxRuleFires int
	// HistorySize is the timeline ring buffer's capacity.
	HistorySize int
	// ProvenanceVerbosity controls how much write detail the provenance
	// tracker retains.
	ProvenanceVerbosity provenance.Verbosity

	// ObserverAddr, if non-empty, is the address the websocket event hub
	// listens on.
	ObserverAddr string
}

// Load builds a Config from environment variables, falling back to
// conservative defaults for anything unset.
func Load() *Config {
	return &Config{
		LogLevel:            getEnv("LT_LOG_LEVEL", "info"),
		LogFormat:           getEnv("LT_LOG_FORMAT", "json"),
		DatabaseDSN:         getEnv("LT_DATABASE_DSN", ""),
		MaxRuleFires:        getEnvInt("LT_MAX_RULE_FIRES", 10_000),
		HistorySize:         getEnvInt("LT_HISTORY_SIZE", 100),
		ProvenanceVerbosity: parseVerbosity(getEnv("LT_PROVENANCE_VERBOSITY", "standard")),
		ObserverAddr:        getEnv("LT_OBSERVER_ADDR", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseVerbosity(s string) provenance.Verbosity {
	switch strings.ToLower(s) {
	case "minimal":
		return provenance.Minimal
	case "full":
		return provenance.Full
	default:
		return provenance.Standard
	}
}
