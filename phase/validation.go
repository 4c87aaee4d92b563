package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// MetaValidationFindings is the metadata key under which validation issues
// are recorded.
const MetaValidationFindings = "validation_findings"

// Validation runs structural consistency checks on the post-update state.
// Findings are recoverable by definition: they are encoded as a metric and
// metadata, never returned as an error.
type Validation struct {
	logger logging.Logger
}

// NewValidation creates the validation phase.
func NewValidation(optFns ...func(o *Options)) *Validation {
	opts := applyOptions("", optFns)
	return &Validation{logger: opts.Logger}
}

// Execute implements core.PhaseService.
func (p *Validation) Execute(_ context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	var findings []string

	if state.WorldState.Turn != state.Turn {
		findings = append(findings, fmt.Sprintf(
			"world state is for turn %d, current turn is %d", state.WorldState.Turn, state.Turn))
	}
	for key, d := range state.Decisions {
		if d.Turn != state.Turn {
			findings = append(findings, fmt.Sprintf(
				"decision of %s is for turn %d, current turn is %d", key, d.Turn, state.Turn))
		}
		if _, ok := state.Actors[key]; !ok {
			findings = append(findings, fmt.Sprintf("decision recorded for unknown actor %s", key))
		}
	}
	for i, c := range state.Costs {
		if c.Turn > state.Turn {
			findings = append(findings, fmt.Sprintf(
				"cost record %d is for future turn %d", i, c.Turn))
		}
		if i > 0 && c.Turn < state.Costs[i-1].Turn {
			findings = append(findings, fmt.Sprintf(
				"cost records out of turn order at index %d", i))
		}
	}
	for _, c := range state.Communications {
		if _, ok := state.Actors[c.Sender]; !ok && c.Sender != "" {
			findings = append(findings, fmt.Sprintf(
				"communication %s from unknown sender %s", c.ID, c.Sender))
		}
	}

	ok := 1.0
	if len(findings) > 0 {
		ok = 0
		state = state.WithMetadata(MetaValidationFindings, findings)
		p.logger.Warn("validation found inconsistencies", "turn", state.Turn, "count", len(findings))
	}

	return state.WithMetric(core.MetricRecord{
		Turn:      state.Turn,
		Name:      "consistency_ok",
		Value:     ok,
		Timestamp: time.Now().UTC(),
	}), nil
}
