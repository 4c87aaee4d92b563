package core

import "context"

// CheckpointStore defines the interface for state persistence. One store
// instance covers one run directory (or equivalent scope); implementations
// should be thread-safe. Save returns the location written so callers can
// report it. Short method names mirror other store interfaces for
// consistency.
type CheckpointStore interface {
	Save(ctx context.Context, state ScenarioState) (string, error)
	LoadTurn(ctx context.Context, turn int) (ScenarioState, error)
	LoadLatest(ctx context.Context) (ScenarioState, error)
}
