package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// StubPhase is a scripted core.PhaseService recording every call. Zero value
// passes the state through unchanged.
type StubPhase struct {
	mu sync.Mutex

	// Transform, when set, derives the returned state.
	Transform func(core.ScenarioState) core.ScenarioState

	// Err, when set, is returned for every call.
	Err error

	// FailOnTurn, when positive, returns ErrOnTurn only on that turn.
	FailOnTurn int
	ErrOnTurn  error

	calls []int
}

// Execute implements core.PhaseService.
func (p *StubPhase) Execute(_ context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	p.mu.Lock()
	p.calls = append(p.calls, state.Turn)
	p.mu.Unlock()

	if p.Err != nil {
		return state, p.Err
	}
	if p.FailOnTurn > 0 && state.Turn == p.FailOnTurn {
		return state, p.ErrOnTurn
	}
	if p.Transform != nil {
		return p.Transform(state), nil
	}
	return state, nil
}

// Calls returns the turns this phase was executed on, in call order.
func (p *StubPhase) Calls() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.calls))
	copy(out, p.calls)
	return out
}

// CostingPhase returns a phase appending a fixed cost per execution,
// attributed to the given actor.
func CostingPhase(actor core.ActorKey, cost float64) core.PhaseService {
	return core.PhaseFunc(func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
		return s.WithCost(core.CostRecord{
			Timestamp: time.Now().UTC(),
			Turn:      s.Turn,
			Actor:     actor,
			Phase:     s.CurrentPhase,
			Cost:      cost,
		}), nil
	})
}
