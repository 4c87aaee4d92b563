// Package runner is the composition root: it wires a scenario definition
// into a runnable simulation. Given a config it builds the initial state,
// resolves a model per actor, registers the built-in phases, attaches the
// checkpoint store and optional transcript/analytics sinks, and drives the
// orchestrator.
//
// The Runner owns nothing the engine needs; every piece (bus, store, phases,
// models) can also be assembled by hand for programs that want different
// wiring. It exists so the CLI and the examples stay short.
//
// Public methods are safe for concurrent use, but only one execution
// (Run, Resume or BranchAndRun) may be active at a time.
package runner
