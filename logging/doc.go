// Package logging provides a minimal logging interface and adapters for the
// simulation engine.
//
// The Logger interface defines the standard structured logging methods
// (Debug, Info, Warn, Error) that the engine, phases and stores use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RunLogger with run/scenario context and domain helpers (phases, model
//     calls, checkpoints)
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := engine.New(bus.New(), engine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
