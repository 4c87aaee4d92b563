package phase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/internal/util"
	"github.com/Itangalo/scenario-lab-sub001/logging"
	"github.com/Itangalo/scenario-lab-sub001/model"
)

// DefaultWorldUpdateTemplate is the built-in narrator prompt.
const DefaultWorldUpdateTemplate = `You are the neutral narrator of the scenario "{{.scenario_name}}".

Situation before turn {{.turn}}:
{{.world}}

Actions taken this turn:
{{.actions}}

Messages exchanged this turn:
{{.messages}}

Describe the situation after these actions, as a factual account in a few
paragraphs. Do not take sides and do not invent actions nobody took.
Respond with the new situation description only.`

// WorldUpdate folds the turn's decisions into a new world state via a
// single narrator model.
type WorldUpdate struct {
	narrator model.Model
	template string
	limiter  *core.ModelLimiter
	logger   logging.Logger
}

// NewWorldUpdate creates the world-update phase around a narrator model.
func NewWorldUpdate(narrator model.Model, optFns ...func(o *Options)) *WorldUpdate {
	opts := applyOptions(DefaultWorldUpdateTemplate, optFns)
	return &WorldUpdate{
		narrator: narrator,
		template: opts.Template,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
}

// Execute implements core.PhaseService.
func (p *WorldUpdate) Execute(ctx context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	if err := checkLimiter(p.limiter); err != nil {
		return state, err
	}

	prompt, err := util.RenderTemplate(p.template, map[string]any{
		"scenario_name": state.ScenarioName,
		"turn":          state.Turn,
		"world":         state.WorldState.Content,
		"actions":       renderActions(state),
		"messages":      renderTurnMessages(state),
	})
	if err != nil {
		return state, fmt.Errorf("failed to render world update prompt: %w", err)
	}

	resp, err := p.narrator.Generate(ctx, model.Request{Prompt: prompt})
	if err != nil {
		return state, fmt.Errorf("world update call failed: %w", err)
	}

	content := strings.TrimSpace(resp.Text)
	if content == "" {
		content = state.WorldState.Content
		p.logger.Warn("narrator returned empty world state, keeping previous", "turn", state.Turn)
	}

	state = state.WithWorldState(core.WorldState{Turn: state.Turn, Content: content})
	state = state.WithCost(costRecord(state, "", p.narrator, resp.Usage))
	return state, nil
}

func renderActions(state core.ScenarioState) string {
	if len(state.Decisions) == 0 {
		return "(no actions this turn)"
	}
	var b strings.Builder
	for _, key := range sortedActorKeys(state) {
		d, ok := state.Decisions[key]
		if !ok {
			continue
		}
		name := string(key)
		if actor, ok := state.Actors[key]; ok && actor.Name != "" {
			name = actor.Name
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, d.Action)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTurnMessages(state core.ScenarioState) string {
	comms := state.TurnCommunications(state.Turn)
	if len(comms) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range comms {
		sender := string(c.Sender)
		if actor, ok := state.Actors[c.Sender]; ok && actor.Name != "" {
			sender = actor.Name
		}
		fmt.Fprintf(&b, "- %s: %s\n", sender, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
