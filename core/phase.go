package core

import "context"

// PhaseType names one step within a turn. The first three run every turn in
// the order listed; validation and persistence run after them only when a
// service is registered for the slot.
type PhaseType string

const (
	// PhaseCommunication lets actors exchange messages.
	PhaseCommunication PhaseType = "communication"
	// PhaseDecision has each actor commit to goals, reasoning and an action.
	PhaseDecision PhaseType = "decision"
	// PhaseWorldUpdate folds the turn's decisions into a new world state.
	PhaseWorldUpdate PhaseType = "world_update"
	// PhaseValidation checks the post-update state for consistency.
	PhaseValidation PhaseType = "validation"
	// PhasePersistence renders or exports turn output beyond checkpoints.
	PhasePersistence PhaseType = "persistence"
)

// String returns the wire representation of the phase type.
func (p PhaseType) String() string { return string(p) }

// CorePhases is the fixed relative order of the phases executed every turn.
var CorePhases = []PhaseType{PhaseCommunication, PhaseDecision, PhaseWorldUpdate}

// OptionalPhases run after CorePhases, in this order, when registered.
var OptionalPhases = []PhaseType{PhaseValidation, PhasePersistence}

// PhaseService executes one named step of a turn.
//
// The contract is request/response: the service receives the current state as
// borrowed, read-only input and returns a new state value to express change.
// Any concurrency inside a service must complete before Execute returns.
//
// Implementations must:
//   - Never mutate the received state; derive a successor via its With* methods
//   - Encode expected, recoverable conditions into the returned state
//   - Return an error only for conditions fatal to the current turn
//   - Respect context cancellation on long outbound calls
type PhaseService interface {
	Execute(ctx context.Context, state ScenarioState) (ScenarioState, error)
}

// PhaseFunc adapts a plain function to the PhaseService interface.
type PhaseFunc func(ctx context.Context, state ScenarioState) (ScenarioState, error)

// Execute implements PhaseService by calling f.
func (f PhaseFunc) Execute(ctx context.Context, state ScenarioState) (ScenarioState, error) {
	return f(ctx, state)
}
