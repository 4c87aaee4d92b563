// Package engine implements the turn orchestrator for scenario simulations.
//
// The Orchestrator is the central coordination point of a run. It composes an
// event bus, an immutable scenario state and a set of registered phase
// services, and drives the turn loop under a monetary credit limit with
// pause, stop and resume support.
//
// # Core Responsibilities
//
// Turn Scheduling:
//   - Strictly sequential turns; within a turn, phases run in one fixed
//     relative order (communication, decision, world update, then validation
//     and persistence when registered)
//   - Lifecycle events emitted around every step, with the bus acting as a
//     synchronization barrier so ordering guarantees hold
//   - A checkpoint written after each turn when a store is configured
//
// Credit Circuit-Breaking:
//   - The derived total cost is polled after every phase, not only at turn
//     boundaries
//   - One warning per crossing of the warning threshold; reaching the limit
//     ends the current turn's phase loop early and halts the run
//
// Halt / Resume / Branch:
//   - COMPLETED, FAILED, HALTED and PAUSED are all terminal for one Execute
//     call; resuming means calling Execute again on a freshly loaded or
//     branched state
//   - A resumed state continues from its saved turn without re-running or
//     double-billing completed turns
//
// # Concurrency Model
//
// Exactly one turn-executor drives an Orchestrator at a time. Phase services
// run strictly sequentially relative to each other and to orchestrator
// bookkeeping. Event handlers for one emission run concurrently, but the
// emission itself blocks until all of them return. The orchestrator owns the
// current state exclusively during Execute; phase services receive it as
// read-only input and return a new value to express change.
//
// Pause and stop requests are polled only at turn boundaries: a started turn
// always finishes its phases, modulo the credit breaker. There is no
// per-phase timeout; a hung phase or event handler blocks the pipeline, by
// contract.
//
// # Usage
//
//	orch := engine.New(eventBus,
//	    engine.WithMaxTurns(10),
//	    engine.WithCreditLimit(5.0),
//	    engine.WithCheckpointStore(store),
//	    engine.WithLogger(logger))
//
//	orch.RegisterPhase(core.PhaseCommunication, commPhase)
//	orch.RegisterPhase(core.PhaseDecision, decisionPhase)
//	orch.RegisterPhase(core.PhaseWorldUpdate, worldPhase)
//
//	final, err := orch.Execute(ctx, initialState)
package engine
