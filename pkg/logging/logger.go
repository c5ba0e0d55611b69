// Package logging provides structured logging configuration using zerolog.
//
// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page merges (count after merge)
//   - Prefetch window scheduling (center page, page count)
//   - Cancelled background fetches
//
// Warn: Warning conditions that don't prevent operation
//   - Failed page fetches (recorded as pagination errors)
//   - Background prefetch failures (retried on synchronous access)
//   - Cache errors (fallback to direct fetch)
//
// Context Fields:
//   - component: "pager", "window", "pagecache"
//   - op: pagination operation (fetch_next_page, refresh, ...)
//   - page: page index (windowed collections)
//   - count: element count after a merge
//   - key, source: cache key and namespace
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output ("debug", "info",
	// "warn", "error"). Unknown values fall back to info.
	Level string

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
