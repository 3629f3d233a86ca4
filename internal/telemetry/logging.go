// Package telemetry provides the structured loggers and the Prometheus
// metric set a host records around the engine's externally-visible
// operations; it does not wrap those operations itself. Recording is a pure
// side effect attached after the engine has already computed (or rejected)
// a result — nothing in this package ever feeds back into engine state or
// control flow, so disabling it changes nothing about correctness.
package telemetry

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a structured JSON logger for one engine component
// ("engine", "keeper", "trade", "liquidation"). Level is controlled by the
// RISKSLAB_LOG_LEVEL environment variable, timestamps are RFC3339Nano.
func NewLogger(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(parseLogLevel(os.Getenv("RISKSLAB_LOG_LEVEL"))).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
