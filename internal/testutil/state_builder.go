package testutil

import (
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// StateBuilder helps construct scenario states with fluent chaining for
// tests. Example:
//
//	state := NewStateBuilder("summit").
//	    Actor("north", "Northern Alliance").
//	    Running().Turn(2).
//	    Cost(1, "north", 0.25).
//	    Build()
type StateBuilder struct {
	state core.ScenarioState
}

// NewStateBuilder creates a builder for a scenario with the given id (also
// used as display name). Use chainable methods then call Build.
func NewStateBuilder(scenarioID string) *StateBuilder {
	return &StateBuilder{state: core.NewScenarioState(scenarioID, scenarioID)}
}

// Actor adds a roster entry with optional goals (chainable).
func (b *StateBuilder) Actor(key core.ActorKey, name string, goals ...string) *StateBuilder {
	b.state = b.state.WithActor(core.ActorState{Key: key, Name: name, CurrentGoals: goals})
	return b
}

// Running transitions the state to RUNNING (chainable).
func (b *StateBuilder) Running() *StateBuilder {
	b.state = b.state.WithStarted()
	return b
}

// Turn sets the turn counter (chainable).
func (b *StateBuilder) Turn(n int) *StateBuilder {
	b.state = b.state.WithTurn(n)
	return b
}

// World sets the world state (chainable).
func (b *StateBuilder) World(turn int, content string) *StateBuilder {
	b.state = b.state.WithWorldState(core.WorldState{Turn: turn, Content: content})
	return b
}

// Cost appends a cost record with a fixed timestamp (chainable).
func (b *StateBuilder) Cost(turn int, actor core.ActorKey, amount float64) *StateBuilder {
	b.state = b.state.WithCost(core.CostRecord{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(b.state.Costs)) * time.Second),
		Turn:      turn,
		Actor:     actor,
		Cost:      amount,
	})
	return b
}

// Metric appends a metric record (chainable).
func (b *StateBuilder) Metric(turn int, name string, value float64) *StateBuilder {
	b.state = b.state.WithMetric(core.MetricRecord{
		Turn: turn, Name: name, Value: value,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return b
}

// Communication appends a broadcast message (chainable).
func (b *StateBuilder) Communication(turn int, sender core.ActorKey, content string) *StateBuilder {
	b.state = b.state.WithCommunication(core.Communication{
		ID: core.NewID(), Turn: turn, Type: "broadcast", Sender: sender,
		Content: content, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return b
}

// Decision records an actor's decision for the current turn (chainable).
func (b *StateBuilder) Decision(actor core.ActorKey, turn int, action string) *StateBuilder {
	b.state = b.state.WithDecision(core.Decision{Actor: actor, Turn: turn, Action: action})
	return b
}

// Build returns the constructed state.
func (b *StateBuilder) Build() core.ScenarioState {
	return b.state
}
