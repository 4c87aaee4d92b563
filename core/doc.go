// Package core provides the foundational domain types, interfaces and state
// model used by the scenario engine. It defines the core abstractions for:
//
//   - Events (immutable lifecycle records fanned out by the bus)
//   - ScenarioState (the immutable aggregate of one run, evolved copy-on-write)
//   - Phase services (interchangeable per-turn processing steps)
//   - Cost, metric, decision and communication records
//   - Pluggable checkpoint stores enabling resume and branch
//
// The package intentionally keeps implementation concerns (persistence, bus
// fan-out, turn orchestration, concrete phases) out of scope, exposing small
// interfaces to enable custom backends and extensions. All exported
// identifiers include concise documentation to aid discoverability and
// external consumption.
package core
