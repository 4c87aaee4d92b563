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

// DefaultDecisionTemplate is the built-in decision prompt. The response
// format is the minimum structure parseDecision understands.
const DefaultDecisionTemplate = `You are {{.actor_name}} in the scenario "{{.scenario_name}}".

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

Decide what you do this turn. Respond in exactly this format:

GOALS:
- <your goals after this turn, one per line>
REASONING: <why, in one or two sentences>
ACTION: <the single concrete action you take>`

// Decision has each actor commit to goals, reasoning and an action via its
// model, recording the decision, refreshed goals and a cost record.
type Decision struct {
	models   map[core.ActorKey]model.Model
	template string
	limiter  *core.ModelLimiter
	logger   logging.Logger
}

// NewDecision creates the decision phase over one model per actor.
func NewDecision(models map[core.ActorKey]model.Model, optFns ...func(o *Options)) *Decision {
	opts := applyOptions(DefaultDecisionTemplate, optFns)
	return &Decision{
		models:   models,
		template: opts.Template,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
}

// Execute implements core.PhaseService.
func (p *Decision) Execute(ctx context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	for _, key := range sortedActorKeys(state) {
		m, ok := p.models[key]
		if !ok {
			p.logger.Warn("actor has no model, skipping decision", "actor", key.String(), "turn", state.Turn)
			continue
		}
		if err := checkLimiter(p.limiter); err != nil {
			return state, err
		}

		actor := state.Actors[key]
		prompt, err := util.RenderTemplate(p.template, promptData(state, actor))
		if err != nil {
			return state, fmt.Errorf("failed to render decision prompt for %s: %w", key, err)
		}

		resp, err := m.Generate(ctx, model.Request{Prompt: prompt})
		if err != nil {
			return state, fmt.Errorf("decision call failed for %s: %w", key, err)
		}

		goals, reasoning, action := parseDecision(resp.Text)
		if action == "" {
			// An unparseable reply is a recoverable condition: keep the raw
			// text as the action rather than aborting the turn.
			action = strings.TrimSpace(resp.Text)
			p.logger.Warn("decision reply had no ACTION section", "actor", key.String(), "turn", state.Turn)
		}

		state = state.WithDecision(core.Decision{
			Actor:     key,
			Turn:      state.Turn,
			Goals:     goals,
			Reasoning: reasoning,
			Action:    action,
		})
		if len(goals) > 0 {
			state = state.WithActorGoals(key, goals)
		}
		state = state.WithCost(costRecord(state, key, m, resp.Usage))
	}
	return state, nil
}

// parseDecision extracts the GOALS / REASONING / ACTION sections from a
// model reply. It is a line-oriented scan, tolerant of extra prose around
// the sections; anything fancier belongs to a custom phase service.
func parseDecision(text string) (goals []string, reasoning, action string) {
	const (
		none = iota
		inGoals
	)
	section := none

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case strings.HasPrefix(upper, "GOALS:"):
			section = inGoals
			if rest := strings.TrimSpace(trimmed[len("GOALS:"):]); rest != "" {
				goals = append(goals, rest)
			}
		case strings.HasPrefix(upper, "REASONING:"):
			section = none
			reasoning = strings.TrimSpace(trimmed[len("REASONING:"):])
		case strings.HasPrefix(upper, "ACTION:"):
			section = none
			action = strings.TrimSpace(trimmed[len("ACTION:"):])
		case section == inGoals && strings.HasPrefix(trimmed, "-"):
			if g := strings.TrimSpace(strings.TrimPrefix(trimmed, "-")); g != "" {
				goals = append(goals, g)
			}
		case trimmed == "":
			section = none
		}
	}
	return goals, reasoning, action
}
