package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// executeTurn advances the state by one turn: it runs the fixed phase
// sequence, polls the credit breaker after every phase, emits the turn
// lifecycle events and writes the post-turn checkpoint.
//
// On a phase failure the state executed so far is returned together with the
// error; the caller records it and marks the run failed. On a credit-limit
// early exit the turn still completes normally for the phases that ran.
func (o *Orchestrator) executeTurn(ctx context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	turn := state.Turn + 1
	started := time.Now()
	state = state.WithTurn(turn).WithDecisionsReset()

	o.emit(core.EventTurnStarted, state.RunID, map[string]any{
		"run_id": state.RunID,
		"turn":   turn,
	})

	phasesRun := 0
	for _, phase := range o.turnPlan() {
		svc, ok := o.phaseFor(phase)
		if !ok {
			o.logger.Warn("no service registered for phase, skipping", "phase", phase.String(), "turn", turn)
			continue
		}

		state = state.WithPhase(phase)
		o.emit(core.EventPhaseStarted, state.RunID, map[string]any{
			"run_id": state.RunID,
			"turn":   turn,
			"phase":  phase.String(),
		})

		phaseStart := time.Now()
		next, err := svc.Execute(ctx, state)
		if err != nil {
			o.emit(core.EventPhaseFailed, state.RunID, map[string]any{
				"run_id": state.RunID,
				"turn":   turn,
				"phase":  phase.String(),
				"error":  err.Error(),
			})
			o.emit(core.EventTurnFailed, state.RunID, map[string]any{
				"run_id": state.RunID,
				"turn":   turn,
				"phase":  phase.String(),
				"error":  err.Error(),
			})
			return state, fmt.Errorf("phase %s failed on turn %d: %w", phase, turn, err)
		}
		if next.Turn < state.Turn {
			return state, fmt.Errorf("phase %s rewound turn from %d to %d", phase, state.Turn, next.Turn)
		}
		state = next
		phasesRun++

		o.emit(core.EventPhaseCompleted, state.RunID, map[string]any{
			"run_id":      state.RunID,
			"turn":        turn,
			"phase":       phase.String(),
			"duration_ms": time.Since(phaseStart).Milliseconds(),
		})

		if o.checkCredit(state) {
			break
		}
	}

	o.emit(core.EventTurnCompleted, state.RunID, map[string]any{
		"run_id":     state.RunID,
		"turn":       turn,
		"phases":     phasesRun,
		"total_cost": state.TotalCost(),
		"state":      state,
	})
	o.logger.Info("turn completed", "run_id", state.RunID, "turn", turn,
		"phases", phasesRun, "total_cost", state.TotalCost(), "duration", time.Since(started))

	if o.store != nil {
		path, err := o.store.Save(ctx, state)
		if err != nil {
			// The core recovers nothing silently: a failed checkpoint write
			// is fatal to the run.
			return state, fmt.Errorf("failed to checkpoint turn %d: %w", turn, err)
		}
		o.logger.Debug("checkpoint written", "run_id", state.RunID, "turn", turn, "path", path)
	}

	return state, nil
}

// turnPlan returns the phases for one turn: the core sequence always, the
// optional slots only when a service is registered for them.
func (o *Orchestrator) turnPlan() []core.PhaseType {
	plan := make([]core.PhaseType, 0, len(core.CorePhases)+len(core.OptionalPhases))
	plan = append(plan, core.CorePhases...)
	for _, phase := range core.OptionalPhases {
		if _, ok := o.phaseFor(phase); ok {
			plan = append(plan, phase)
		}
	}
	return plan
}

// checkCredit polls the spend ceiling against the derived total cost. It
// reports true when the limit is reached, which ends the current turn's
// phase loop early. The warning fires once per crossing into the warning
// band; the exceeded event fires exactly once per Execute call.
func (o *Orchestrator) checkCredit(state core.ScenarioState) bool {
	if o.creditLimit <= 0 {
		return false
	}

	total := state.TotalCost()
	if total >= o.creditLimit {
		if !o.limitEmitted {
			o.limitEmitted = true
			o.emit(core.EventCreditExceeded, state.RunID, map[string]any{
				"run_id":     state.RunID,
				"turn":       state.Turn,
				"total_cost": total,
				"limit":      o.creditLimit,
			})
			o.logger.Warn("credit limit exceeded", "run_id", state.RunID, "total_cost", total, "limit", o.creditLimit)
		}
		o.budgetExceeded = true
		return true
	}

	if total >= o.warnFraction*o.creditLimit && !o.warned {
		o.warned = true
		o.emit(core.EventCreditWarning, state.RunID, map[string]any{
			"run_id":     state.RunID,
			"turn":       state.Turn,
			"total_cost": total,
			"limit":      o.creditLimit,
			"threshold":  o.warnFraction,
		})
		o.logger.Warn("credit limit warning", "run_id", state.RunID, "total_cost", total, "limit", o.creditLimit)
	}

	return false
}
