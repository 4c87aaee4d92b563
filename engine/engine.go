package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

const (
	// DefaultMaxTurns bounds a run when no explicit turn count is configured.
	DefaultMaxTurns = 10

	// DefaultWarnFraction is the share of the credit limit at which the
	// warning event fires.
	DefaultWarnFraction = 0.8

	// source tag attached to every event the orchestrator emits.
	eventSource = "orchestrator"
)

// Options configures an Orchestrator instance using the functional options
// pattern.
type Options struct {
	// MaxTurns is the number of turns after which a run completes normally.
	// Defaults to DefaultMaxTurns; zero or negative falls back to the default.
	MaxTurns int

	// CreditLimit is the monetary ceiling on cumulative spend in USD.
	// Zero disables credit enforcement entirely.
	CreditLimit float64

	// WarnFraction is the share of CreditLimit at which a warning event is
	// emitted. Defaults to DefaultWarnFraction.
	WarnFraction float64

	// CheckpointStore receives a snapshot after every turn. Nil disables
	// checkpointing.
	CheckpointStore core.CheckpointStore

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// WithMaxTurns sets the turn count for normal completion.
func WithMaxTurns(n int) func(o *Options) {
	return func(o *Options) { o.MaxTurns = n }
}

// WithCreditLimit sets the spend ceiling in USD.
func WithCreditLimit(limit float64) func(o *Options) {
	return func(o *Options) { o.CreditLimit = limit }
}

// WithCheckpointStore enables per-turn checkpointing into the store.
func WithCheckpointStore(store core.CheckpointStore) func(o *Options) {
	return func(o *Options) { o.CheckpointStore = store }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Orchestrator drives the turn loop of one scenario run: it calls registered
// phase services in fixed order, emits lifecycle events around every step,
// enforces the credit limit after each phase and checkpoints after each
// turn. It owns the current state exclusively for the duration of Execute.
//
// An Orchestrator is reusable across Execute calls (run, halt, resume), but
// only one Execute may be in flight at a time.
type Orchestrator struct {
	bus    *bus.Bus
	store  core.CheckpointStore
	logger logging.Logger

	maxTurns     int
	creditLimit  float64
	warnFraction float64

	// Phase registry, guarded for registration concurrent with inspection.
	mu     sync.RWMutex
	phases map[core.PhaseType]core.PhaseService

	// Operator flags, polled at turn boundaries.
	pauseRequested atomic.Bool
	stopRequested  atomic.Bool

	// Per-Execute credit bookkeeping, reset when Execute starts. Only the
	// single turn-executor touches these.
	budgetExceeded bool
	warned         bool
	limitEmitted   bool

	// Snapshot of the most recent state, readable while a run is in flight.
	current atomic.Value
}

// New creates an orchestrator bound to the given event bus. The bus is a
// required dependency, injected rather than global: every orchestrator
// instance has exactly one.
func New(eventBus *bus.Bus, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxTurns:     DefaultMaxTurns,
		WarnFraction: DefaultWarnFraction,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.WarnFraction <= 0 || opts.WarnFraction >= 1 {
		opts.WarnFraction = DefaultWarnFraction
	}

	return &Orchestrator{
		bus:          eventBus,
		store:        opts.CheckpointStore,
		logger:       core.EnsureLogger(opts.Logger),
		maxTurns:     opts.MaxTurns,
		creditLimit:  opts.CreditLimit,
		warnFraction: opts.WarnFraction,
		phases:       make(map[core.PhaseType]core.PhaseService),
	}
}

// RegisterPhase binds a service to a phase slot, replacing any previous
// registration. Unregistered core phases are skipped with a warning at run
// time; unregistered optional phases are skipped silently.
func (o *Orchestrator) RegisterPhase(phase core.PhaseType, svc core.PhaseService) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases[phase] = svc
}

// UnregisterPhase removes the service bound to a phase slot.
func (o *Orchestrator) UnregisterPhase(phase core.PhaseType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.phases, phase)
}

func (o *Orchestrator) phaseFor(phase core.PhaseType) (core.PhaseService, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	svc, ok := o.phases[phase]
	return svc, ok
}

// Bus returns the event bus this orchestrator emits on.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// State returns the most recent state snapshot. Safe to call from other
// goroutines while a run is in flight; the zero state is returned before the
// first Execute.
func (o *Orchestrator) State() core.ScenarioState {
	if s, ok := o.current.Load().(core.ScenarioState); ok {
		return s
	}
	return core.ScenarioState{}
}

// Pause requests a pause. It takes effect at the next turn boundary; the
// current turn always finishes its phases first.
func (o *Orchestrator) Pause() { o.pauseRequested.Store(true) }

// Resume clears a pending pause request. Resuming an already-paused run
// means calling Execute again on its saved state.
func (o *Orchestrator) Resume() { o.pauseRequested.Store(false) }

// Stop requests a halt at the next turn boundary. A stopped run is
// resumable from its last checkpoint.
func (o *Orchestrator) Stop() { o.stopRequested.Store(true) }

// Execute drives the turn loop from the given state until completion, a
// credit halt, an operator pause/stop, or a phase failure. It accepts a
// CREATED state for a fresh run, or a RUNNING, HALTED or PAUSED state loaded
// from a checkpoint or branch, continuing from state.Turn + 1.
//
// The returned state is always the final state for this call, carrying one
// of the four terminal statuses. The error is non-nil only for a phase
// failure (the state is then FAILED with the message recorded) or an invalid
// starting status.
func (o *Orchestrator) Execute(ctx context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	resumed := state.Status != core.StatusCreated
	if resumed && !state.Status.CanResume() {
		return state, fmt.Errorf("cannot execute run in status %s", state.Status)
	}

	// Fresh credit bookkeeping per call. A resumed run re-warns once if the
	// loaded spend already sits inside the warning band.
	o.budgetExceeded = false
	o.warned = false
	o.limitEmitted = false
	o.stopRequested.Store(false)

	state = state.WithStarted()
	o.current.Store(state)

	data := map[string]any{
		"scenario_id": state.ScenarioID,
		"run_id":      state.RunID,
		"turn":        state.Turn,
		"max_turns":   o.maxTurns,
	}
	if resumed {
		o.emit(core.EventScenarioResumed, state.RunID, data)
		o.logger.Info("scenario resumed", "scenario_id", state.ScenarioID, "run_id", state.RunID, "turn", state.Turn)
	} else {
		o.emit(core.EventScenarioStarted, state.RunID, data)
		o.logger.Info("scenario started", "scenario_id", state.ScenarioID, "run_id", state.RunID)
	}

	var execErr error
	for state.Turn < o.maxTurns {
		if state.Status.IsTerminal() || state.Status == core.StatusPaused {
			break
		}
		if o.pauseRequested.Load() || o.stopRequested.Load() {
			break
		}

		next, err := o.executeTurn(ctx, state)
		state = next
		o.current.Store(state)

		if err != nil {
			execErr = err
			break
		}
		if o.budgetExceeded {
			break
		}
	}

	state = o.finalize(ctx, state, execErr)
	o.current.Store(state)
	return state, execErr
}

// finalize applies the terminal transition for this Execute call and emits
// the matching scenario event.
func (o *Orchestrator) finalize(ctx context.Context, state core.ScenarioState, execErr error) core.ScenarioState {
	switch {
	case execErr != nil:
		state = state.WithError(execErr.Error())
		o.emit(core.EventScenarioFailed, state.RunID, map[string]any{
			"run_id": state.RunID,
			"turn":   state.Turn,
			"error":  execErr.Error(),
		})
		o.logger.Error("scenario failed", "run_id", state.RunID, "turn", state.Turn, "error", execErr)

	case o.budgetExceeded:
		reason := fmt.Sprintf("credit limit reached: $%.4f of $%.4f", state.TotalCost(), o.creditLimit)
		state = state.WithHalted(reason)
		o.emit(core.EventScenarioHalted, state.RunID, map[string]any{
			"run_id":     state.RunID,
			"turn":       state.Turn,
			"reason":     reason,
			"total_cost": state.TotalCost(),
		})
		o.logger.Warn("scenario halted", "run_id", state.RunID, "reason", reason)

	case o.stopRequested.Load():
		state = state.WithHalted("stop requested")
		o.emit(core.EventScenarioHalted, state.RunID, map[string]any{
			"run_id": state.RunID,
			"turn":   state.Turn,
			"reason": "stop requested",
		})
		o.logger.Info("scenario halted", "run_id", state.RunID, "reason", "stop requested")

	case o.pauseRequested.Load():
		state = state.WithPaused()
		o.emit(core.EventScenarioPaused, state.RunID, map[string]any{
			"run_id": state.RunID,
			"turn":   state.Turn,
		})
		o.logger.Info("scenario paused", "run_id", state.RunID, "turn", state.Turn)

	case state.Status == core.StatusRunning:
		// Reaching the configured turn count is normal completion.
		state = state.WithCompleted()
		o.emit(core.EventScenarioCompleted, state.RunID, map[string]any{
			"run_id":     state.RunID,
			"turn":       state.Turn,
			"total_cost": state.TotalCost(),
		})
		o.logger.Info("scenario completed", "run_id", state.RunID, "turn", state.Turn, "total_cost", state.TotalCost())
	}

	// Persist the terminal status so a later Execute resumes from it. The
	// run outcome already stands; a write failure here is only logged.
	if o.store != nil {
		if _, err := o.store.Save(ctx, state); err != nil {
			o.logger.Error("failed to save final checkpoint", "run_id", state.RunID, "turn", state.Turn, "error", err)
		}
	}

	return state
}

// emit publishes one lifecycle event tagged with this orchestrator as source
// and the run ID as correlation.
func (o *Orchestrator) emit(eventType core.EventType, runID string, data map[string]any) {
	o.bus.Emit(eventType, data, func(eo *bus.EmitOptions) {
		eo.Source = eventSource
		eo.CorrelationID = runID
	})
}
