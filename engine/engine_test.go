package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/checkpoint"
	"github.com/Itangalo/scenario-lab-sub001/core"
)

// collector records every event emitted on the bus in emission order.
type collector struct {
	mu     sync.Mutex
	events []core.Event
}

func collect(b *bus.Bus) *collector {
	c := &collector{}
	b.On(core.EventAny, func(ev core.Event) error {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
		return nil
	})
	return c
}

func (c *collector) ofType(t core.EventType) []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []core.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *collector) types() []core.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

// passThrough returns a phase that hands the state back unchanged.
func passThrough() core.PhaseService {
	return core.PhaseFunc(func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
		return s, nil
	})
}

// costing returns a phase appending a fixed cost per execution.
func costing(cost float64) core.PhaseService {
	return core.PhaseFunc(func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
		return s.WithCost(core.CostRecord{
			Timestamp: time.Now().UTC(),
			Turn:      s.Turn,
			Actor:     "payer",
			Phase:     s.CurrentPhase,
			Cost:      cost,
		}), nil
	})
}

func newState() core.ScenarioState {
	s := core.NewScenarioState("exercise", "Exercise")
	return s.WithActor(core.ActorState{Key: "payer", Name: "Payer"})
}

func registerCore(o *Orchestrator, svc core.PhaseService) {
	for _, p := range core.CorePhases {
		o.RegisterPhase(p, svc)
	}
}

func TestExecute_ThreePassThroughTurns(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(3))
	registerCore(o, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	assert.Equal(t, 3, final.Turn)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Len(t, events.ofType(core.EventTurnStarted), 3)
	assert.Len(t, events.ofType(core.EventTurnCompleted), 3)
	assert.Len(t, events.ofType(core.EventScenarioCompleted), 1)
	assert.Empty(t, events.ofType(core.EventScenarioHalted))
}

func TestExecute_HaltsAtCreditLimit(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(10), WithCreditLimit(1.0))
	o.RegisterPhase(core.PhaseCommunication, costing(0.50))
	o.RegisterPhase(core.PhaseDecision, passThrough())
	o.RegisterPhase(core.PhaseWorldUpdate, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	assert.Equal(t, 2, final.Turn)
	assert.Equal(t, core.StatusHalted, final.Status)
	assert.InDelta(t, 1.0, final.TotalCost(), 1e-9)
	assert.Len(t, events.ofType(core.EventCreditExceeded), 1)
	assert.Len(t, events.ofType(core.EventScenarioHalted), 1)
	assert.Contains(t, final.HaltReason(), "credit limit")

	// The breaker cut turn 2 short after the first phase, yet the turn
	// still completed for the phases that ran.
	completed := events.ofType(core.EventTurnCompleted)
	require.Len(t, completed, 2)
	phases, ok := completed[1].Int("phases")
	require.True(t, ok)
	assert.Equal(t, 1, phases)
}

func TestExecute_WarnsAtThresholdBeforeHalt(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(10), WithCreditLimit(2.5))
	o.RegisterPhase(core.PhaseCommunication, costing(0.50))
	o.RegisterPhase(core.PhaseDecision, passThrough())
	o.RegisterPhase(core.PhaseWorldUpdate, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	warnings := events.ofType(core.EventCreditWarning)
	require.Len(t, warnings, 1)
	total, ok := warnings[0].Float("total_cost")
	require.True(t, ok)
	assert.InDelta(t, 2.0, total, 1e-9)
	turn, ok := warnings[0].Int("turn")
	require.True(t, ok)
	assert.Equal(t, 4, turn)

	// The warning precedes any halt.
	assert.Equal(t, core.StatusHalted, final.Status)
	assert.Len(t, events.ofType(core.EventCreditExceeded), 1)
}

func TestExecute_PhaseFailureMarksRunFailed(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(5))
	o.RegisterPhase(core.PhaseCommunication, passThrough())
	o.RegisterPhase(core.PhaseDecision, core.PhaseFunc(
		func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
			if s.Turn == 2 {
				return s, fmt.Errorf("model unavailable")
			}
			return s, nil
		}))
	o.RegisterPhase(core.PhaseWorldUpdate, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.Error(t, err)

	assert.Equal(t, core.StatusFailed, final.Status)
	assert.Equal(t, 2, final.Turn)
	assert.Contains(t, final.Error, "model unavailable")
	assert.Len(t, events.ofType(core.EventPhaseFailed), 1)
	assert.Len(t, events.ofType(core.EventTurnFailed), 1)
	assert.Len(t, events.ofType(core.EventScenarioFailed), 1)
	assert.Empty(t, events.ofType(core.EventScenarioCompleted))
}

func TestExecute_RejectsTerminalStartingStatus(t *testing.T) {
	o := New(bus.New())
	registerCore(o, passThrough())

	_, err := o.Execute(context.Background(), newState().WithStarted().WithCompleted())
	assert.Error(t, err)

	_, err = o.Execute(context.Background(), newState().WithError("boom"))
	assert.Error(t, err)
}

func TestExecute_EventOrderingWithinTurn(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(1))
	registerCore(o, passThrough())

	_, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	types := events.types()
	want := []core.EventType{
		core.EventScenarioStarted,
		core.EventTurnStarted,
		core.EventPhaseStarted, core.EventPhaseCompleted,
		core.EventPhaseStarted, core.EventPhaseCompleted,
		core.EventPhaseStarted, core.EventPhaseCompleted,
		core.EventTurnCompleted,
		core.EventScenarioCompleted,
	}
	assert.Equal(t, want, types)
}

func TestExecute_SkipsUnregisteredPhases(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(1))
	// Only one of three core phases is wired; the orchestrator never
	// assumes full wiring.
	o.RegisterPhase(core.PhaseDecision, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Len(t, events.ofType(core.EventPhaseStarted), 1)
}

func TestExecute_OptionalPhasesRunWhenRegistered(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(1))
	registerCore(o, passThrough())
	o.RegisterPhase(core.PhaseValidation, passThrough())
	o.RegisterPhase(core.PhasePersistence, passThrough())

	_, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	started := events.ofType(core.EventPhaseStarted)
	require.Len(t, started, 5)
	last, _ := started[4].Str("phase")
	assert.Equal(t, core.PhasePersistence.String(), last)
	fourth, _ := started[3].Str("phase")
	assert.Equal(t, core.PhaseValidation.String(), fourth)
}

func TestExecute_StopRequestTakesEffectAtTurnBoundary(t *testing.T) {
	b := bus.New()
	o := New(b, WithMaxTurns(10))
	registerCore(o, passThrough())
	o.RegisterPhase(core.PhaseCommunication, core.PhaseFunc(
		func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
			if s.Turn == 2 {
				o.Stop()
			}
			return s, nil
		}))

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	// The stop landed mid-turn 2; that turn still finished its phases.
	assert.Equal(t, 2, final.Turn)
	assert.Equal(t, core.StatusHalted, final.Status)
	assert.Equal(t, "stop requested", final.HaltReason())
}

func TestExecute_PauseProducesPausedState(t *testing.T) {
	b := bus.New()
	events := collect(b)
	o := New(b, WithMaxTurns(10))
	registerCore(o, passThrough())
	o.RegisterPhase(core.PhaseWorldUpdate, core.PhaseFunc(
		func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
			if s.Turn == 1 {
				o.Pause()
			}
			return s, nil
		}))

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)

	assert.Equal(t, core.StatusPaused, final.Status)
	assert.Equal(t, 1, final.Turn)
	assert.Len(t, events.ofType(core.EventScenarioPaused), 1)

	// Resume clears the flag; a second Execute continues from turn 2.
	o.Resume()
	o.UnregisterPhase(core.PhaseWorldUpdate)
	o.RegisterPhase(core.PhaseWorldUpdate, passThrough())
	resumed, err := o.Execute(context.Background(), final)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, resumed.Status)
	assert.Equal(t, 10, resumed.Turn)
	assert.Len(t, events.ofType(core.EventScenarioResumed), 1)
}

func TestExecute_ChecksCheckpointEveryTurn(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	o := New(bus.New(), WithMaxTurns(3), WithCheckpointStore(store))
	registerCore(o, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status)

	assert.Equal(t, 3, store.Len())
	saved, err := store.LoadLatest(context.Background())
	require.NoError(t, err)
	// The final checkpoint carries the terminal status for later resume
	// inspection.
	assert.Equal(t, core.StatusCompleted, saved.Status)
}

func TestExecute_CheckpointFailureIsTurnFatal(t *testing.T) {
	o := New(bus.New(), WithMaxTurns(3), WithCheckpointStore(failingStore{}))
	registerCore(o, passThrough())

	final, err := o.Execute(context.Background(), newState())
	require.Error(t, err)
	assert.Equal(t, core.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "checkpoint")
}

type failingStore struct{}

func (failingStore) Save(context.Context, core.ScenarioState) (string, error) {
	return "", fmt.Errorf("disk full")
}
func (failingStore) LoadTurn(context.Context, int) (core.ScenarioState, error) {
	return core.ScenarioState{}, fmt.Errorf("disk full")
}
func (failingStore) LoadLatest(context.Context) (core.ScenarioState, error) {
	return core.ScenarioState{}, fmt.Errorf("disk full")
}

func TestExecute_ResumeDoesNotDoubleBill(t *testing.T) {
	runOnce := func(limit float64) (core.ScenarioState, *Orchestrator) {
		o := New(bus.New(), WithMaxTurns(4), WithCreditLimit(limit))
		o.RegisterPhase(core.PhaseCommunication, costing(0.50))
		o.RegisterPhase(core.PhaseDecision, passThrough())
		o.RegisterPhase(core.PhaseWorldUpdate, passThrough())
		final, err := o.Execute(context.Background(), newState())
		require.NoError(t, err)
		return final, o
	}

	// Uninterrupted reference run.
	reference, _ := runOnce(0)
	require.Equal(t, core.StatusCompleted, reference.Status)
	require.InDelta(t, 2.0, reference.TotalCost(), 1e-9)

	// Halt at turn 2, then resume with a raised limit to completion.
	halted, o := runOnce(1.0)
	require.Equal(t, core.StatusHalted, halted.Status)
	require.Equal(t, 2, halted.Turn)

	o2 := New(o.Bus(), WithMaxTurns(4), WithCreditLimit(10))
	o2.RegisterPhase(core.PhaseCommunication, costing(0.50))
	o2.RegisterPhase(core.PhaseDecision, passThrough())
	o2.RegisterPhase(core.PhaseWorldUpdate, passThrough())
	resumed, err := o2.Execute(context.Background(), halted)
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, resumed.Status)
	assert.Equal(t, reference.Turn, resumed.Turn)
	assert.InDelta(t, reference.TotalCost(), resumed.TotalCost(), 1e-9)
}

func TestExecute_BranchResumeReproducesWorldState(t *testing.T) {
	// Deterministic world updates: each turn appends its number to the
	// prior content, so any divergence in history shows up in the final
	// world state.
	worldPhase := core.PhaseFunc(func(_ context.Context, s core.ScenarioState) (core.ScenarioState, error) {
		content := s.WorldState.Content + fmt.Sprintf("|t%d", s.Turn)
		return s.WithWorldState(core.WorldState{Turn: s.Turn, Content: content}), nil
	})

	build := func(store core.CheckpointStore) *Orchestrator {
		o := New(bus.New(), WithMaxTurns(5), WithCheckpointStore(store))
		o.RegisterPhase(core.PhaseCommunication, passThrough())
		o.RegisterPhase(core.PhaseDecision, passThrough())
		o.RegisterPhase(core.PhaseWorldUpdate, worldPhase)
		return o
	}

	sourceDir := t.TempDir()
	sourceStore, err := checkpoint.NewFileStore(sourceDir)
	require.NoError(t, err)
	source, err := build(sourceStore).Execute(context.Background(), newState())
	require.NoError(t, err)
	require.Equal(t, 5, source.Turn)

	branchDir := t.TempDir()
	branched, err := checkpoint.Branch(sourceDir, 2, branchDir)
	require.NoError(t, err)
	require.Equal(t, 2, branched.Turn)

	branchStore, err := checkpoint.NewFileStore(branchDir)
	require.NoError(t, err)
	rerun, err := build(branchStore).Execute(context.Background(), branched)
	require.NoError(t, err)

	assert.Equal(t, 5, rerun.Turn)
	assert.Equal(t, source.WorldState.Content, rerun.WorldState.Content)
	assert.NotEqual(t, source.RunID, rerun.RunID)
}

func TestOrchestrator_StateSnapshot(t *testing.T) {
	o := New(bus.New(), WithMaxTurns(2))
	registerCore(o, passThrough())

	assert.Equal(t, core.ScenarioState{}, o.State())

	final, err := o.Execute(context.Background(), newState())
	require.NoError(t, err)
	assert.Equal(t, final.Turn, o.State().Turn)
	assert.Equal(t, final.Status, o.State().Status)
}
