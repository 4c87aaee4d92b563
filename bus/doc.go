// Package bus implements the asynchronous publish/subscribe hub connecting
// the orchestrator to its observers.
//
// Handlers register under an exact event type or the wildcard type and run
// concurrently for each emission. Emit is a synchronization barrier: it
// returns only after every matching handler has finished, so an emission is
// a completed fan-out, never a fire-and-forget. Handler failures (returned
// errors and panics alike) are isolated: they are recorded for inspection via
// Errors and never reach the emitter or sibling handlers.
//
// There is deliberately no per-handler timeout. A stalled handler stalls the
// enclosing Emit and therefore the phase step that triggered it; hosts that
// need bounded handlers must enforce bounds inside the handler itself.
//
// A Bus is an instance, not a global. Every orchestrator receives its own
// bus at construction so concurrent runs never share subscriptions.
package bus
