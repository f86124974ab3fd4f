package modkit

import (
	"log/slog"
	"time"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for operational messages.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAnomalyLogger sets the logger anomalies are written to.
// If not set, anomalies go to the operational logger at warn level.
func WithAnomalyLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.anomalies = logger
	}
}

// WithForceUncompressed writes a zero compression flag into every patched
// record regardless of the payload's comp marker.
func WithForceUncompressed(enabled bool) EngineOption {
	return func(e *Engine) {
		e.forceUncompressed = enabled
	}
}

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithVerifyConcurrency limits how many archives Verify checks at once.
// Values < 1 use the default of 4.
func WithVerifyConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = defaultVerifyConcurrency
		}
		e.verifyConcurrency = n
	}
}
