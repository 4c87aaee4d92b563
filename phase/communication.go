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

// DefaultCommunicationTemplate is the built-in broadcast prompt. It is a
// plain text/template over the keys assembled in promptData.
const DefaultCommunicationTemplate = `You are {{.actor_name}} in the scenario "{{.scenario_name}}".

Current situation (turn {{.turn}}):
{{.world}}

Your goals:
{{bullets .goals}}
{{if .private}}
Private information known only to you:
{{.private}}
{{end}}
Recent messages:
{{.recent}}

Write the message you broadcast to all other actors this turn. Respond with the message text only.`

// Communication has every actor broadcast one message produced by its
// model, appending a communication and a cost record per call.
type Communication struct {
	models   map[core.ActorKey]model.Model
	template string
	limiter  *core.ModelLimiter
	logger   logging.Logger
}

// NewCommunication creates the communication phase over one model per
// actor. Actors without a model stay silent that phase.
func NewCommunication(models map[core.ActorKey]model.Model, optFns ...func(o *Options)) *Communication {
	opts := applyOptions(DefaultCommunicationTemplate, optFns)
	return &Communication{
		models:   models,
		template: opts.Template,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
}

// Execute implements core.PhaseService.
func (p *Communication) Execute(ctx context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	for _, key := range sortedActorKeys(state) {
		m, ok := p.models[key]
		if !ok {
			p.logger.Warn("actor has no model, skipping communication", "actor", key.String(), "turn", state.Turn)
			continue
		}
		if err := checkLimiter(p.limiter); err != nil {
			return state, err
		}

		actor := state.Actors[key]
		prompt, err := util.RenderTemplate(p.template, promptData(state, actor))
		if err != nil {
			return state, fmt.Errorf("failed to render communication prompt for %s: %w", key, err)
		}

		resp, err := m.Generate(ctx, model.Request{Prompt: prompt})
		if err != nil {
			return state, fmt.Errorf("communication call failed for %s: %w", key, err)
		}

		content := strings.TrimSpace(resp.Text)
		if content != "" {
			state = state.WithCommunication(core.NewCommunication(state.Turn, "broadcast", key, nil, content))
		}
		state = state.WithCost(costRecord(state, key, m, resp.Usage))
		p.logger.Debug("communication recorded", "actor", key.String(), "turn", state.Turn, "tokens", resp.Usage.Total())
	}
	return state, nil
}

// promptData assembles the template context shared by the actor-facing
// phases.
func promptData(state core.ScenarioState, actor core.ActorState) map[string]any {
	name := actor.Name
	if name == "" {
		name = string(actor.Key)
	}
	return map[string]any{
		"actor_name":    name,
		"scenario_name": state.ScenarioName,
		"turn":          state.Turn,
		"world":         state.WorldState.Content,
		"goals":         actor.CurrentGoals,
		"private":       actor.PrivateInformation,
		"recent":        recentCommunications(state),
	}
}
