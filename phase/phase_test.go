package phase

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/internal/testutil"
	"github.com/Itangalo/scenario-lab-sub001/model"
)

func twoActorState() core.ScenarioState {
	return testutil.NewStateBuilder("summit").
		Actor("north", "Northern Alliance", "secure funding").
		Actor("south", "Southern Coalition", "market access").
		Running().Turn(1).
		World(0, "Talks begin.").
		Build()
}

func mockModels(keys ...core.ActorKey) map[core.ActorKey]model.Model {
	models := make(map[core.ActorKey]model.Model, len(keys))
	for _, k := range keys {
		models[k] = model.NewMockModel("mock-" + string(k))
	}
	return models
}

func TestCommunication_AppendsMessagesAndCosts(t *testing.T) {
	models := mockModels("north", "south")
	models["north"].(*model.MockModel).SetFallback("We propose a joint fund.")
	models["south"].(*model.MockModel).SetFallback("Show us the numbers.")

	p := NewCommunication(models)
	out, err := p.Execute(context.Background(), twoActorState())
	require.NoError(t, err)

	require.Len(t, out.Communications, 2)
	// Deterministic actor order: north before south.
	assert.Equal(t, core.ActorKey("north"), out.Communications[0].Sender)
	assert.Equal(t, "We propose a joint fund.", out.Communications[0].Content)
	assert.Equal(t, core.ActorKey("south"), out.Communications[1].Sender)
	for _, c := range out.Communications {
		assert.Equal(t, 1, c.Turn)
		assert.Equal(t, "broadcast", c.Type)
	}

	require.Len(t, out.Costs, 2)
	assert.Equal(t, core.PhaseType(""), out.Costs[0].Phase) // set by orchestrator via WithPhase
	assert.Equal(t, 1, out.Costs[0].Turn)

	// Prompt carried actor context.
	req := models["north"].(*model.MockModel).Requests()[0]
	assert.Contains(t, req.Prompt, "Northern Alliance")
	assert.Contains(t, req.Prompt, "secure funding")
	assert.Contains(t, req.Prompt, "Talks begin.")
}

func TestCommunication_SkipsActorWithoutModel(t *testing.T) {
	p := NewCommunication(mockModels("north"))
	out, err := p.Execute(context.Background(), twoActorState())
	require.NoError(t, err)
	assert.Len(t, out.Communications, 1)
}

func TestCommunication_ModelErrorIsTurnFatal(t *testing.T) {
	models := mockModels("north", "south")
	models["north"].(*model.MockModel).Fail(fmt.Errorf("rate limited"))

	p := NewCommunication(models)
	_, err := p.Execute(context.Background(), twoActorState())
	assert.ErrorContains(t, err, "rate limited")
}

func TestCommunication_LimiterStopsRunawayCalls(t *testing.T) {
	limiter := core.NewModelLimiter(1)
	p := NewCommunication(mockModels("north", "south"), WithLimiter(limiter))
	_, err := p.Execute(context.Background(), twoActorState())
	assert.ErrorContains(t, err, "model call")
}

func TestDecision_RecordsParsedDecisions(t *testing.T) {
	models := mockModels("north", "south")
	models["north"].(*model.MockModel).SetFallback(
		"GOALS:\n- secure funding\n- build trust\nREASONING: funding unlocks the rest.\nACTION: propose a joint fund")
	models["south"].(*model.MockModel).SetFallback("ACTION: demand an audit")

	p := NewDecision(models)
	out, err := p.Execute(context.Background(), twoActorState())
	require.NoError(t, err)

	require.Len(t, out.Decisions, 2)
	north := out.Decisions["north"]
	assert.Equal(t, []string{"secure funding", "build trust"}, north.Goals)
	assert.Equal(t, "funding unlocks the rest.", north.Reasoning)
	assert.Equal(t, "propose a joint fund", north.Action)
	assert.Equal(t, 1, north.Turn)

	// Goals refresh the roster.
	assert.Equal(t, []string{"secure funding", "build trust"}, out.Actors["north"].CurrentGoals)
	// South set no goals; originals stay.
	assert.Equal(t, []string{"market access"}, out.Actors["south"].CurrentGoals)

	assert.Len(t, out.Costs, 2)
}

func TestDecision_UnparseableReplyIsRecoverable(t *testing.T) {
	models := mockModels("north")
	models["north"].(*model.MockModel).SetFallback("I will simply do something vague.")

	st := testutil.NewStateBuilder("summit").
		Actor("north", "Northern Alliance").
		Running().Turn(1).
		Build()

	p := NewDecision(models)
	out, err := p.Execute(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "I will simply do something vague.", out.Decisions["north"].Action)
}

func TestParseDecision(t *testing.T) {
	goals, reasoning, action := parseDecision(
		"Some preamble.\n\nGOALS:\n- one\n- two\nREASONING: because.\nACTION: act now\ntrailing")
	assert.Equal(t, []string{"one", "two"}, goals)
	assert.Equal(t, "because.", reasoning)
	assert.Equal(t, "act now", action)

	goals, _, action = parseDecision("goals: inline goal\naction: lowercase works")
	assert.Equal(t, []string{"inline goal"}, goals)
	assert.Equal(t, "lowercase works", action)

	_, _, action = parseDecision("no structure at all")
	assert.Empty(t, action)
}

func TestWorldUpdate_ReplacesWorldState(t *testing.T) {
	narrator := model.NewMockModel("mock-narrator")
	narrator.SetFallback("The fund proposal dominates the agenda.")

	st := twoActorState().
		WithDecision(core.Decision{Actor: "north", Turn: 1, Action: "propose a joint fund"}).
		WithCommunication(core.NewCommunication(1, "broadcast", "south", nil, "Show us the numbers."))

	p := NewWorldUpdate(narrator)
	out, err := p.Execute(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, 1, out.WorldState.Turn)
	assert.Equal(t, "The fund proposal dominates the agenda.", out.WorldState.Content)
	require.Len(t, out.Costs, 1)
	assert.Equal(t, core.ActorKey(""), out.Costs[0].Actor)

	prompt := narrator.Requests()[0].Prompt
	assert.Contains(t, prompt, "propose a joint fund")
	assert.Contains(t, prompt, "Show us the numbers.")
}

func TestWorldUpdate_EmptyReplyKeepsPreviousContent(t *testing.T) {
	narrator := model.NewMockModel("mock-narrator")
	narrator.SetFallback("   ")

	p := NewWorldUpdate(narrator)
	out, err := p.Execute(context.Background(), twoActorState())
	require.NoError(t, err)
	assert.Equal(t, "Talks begin.", out.WorldState.Content)
	assert.Equal(t, 1, out.WorldState.Turn)
}

func TestValidation_CleanStateScoresOne(t *testing.T) {
	st := twoActorState().
		WithWorldState(core.WorldState{Turn: 1, Content: "ok"}).
		WithDecision(core.Decision{Actor: "north", Turn: 1, Action: "wait"})

	out, err := NewValidation().Execute(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, out.Metrics, 1)
	assert.Equal(t, "consistency_ok", out.Metrics[0].Name)
	assert.Equal(t, 1.0, out.Metrics[0].Value)
	_, flagged := out.Metadata[MetaValidationFindings]
	assert.False(t, flagged)
}

func TestValidation_FindingsAreRecordedNotRaised(t *testing.T) {
	st := twoActorState().
		WithDecision(core.Decision{Actor: "ghost", Turn: 7, Action: "haunt"})

	out, err := NewValidation().Execute(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, out.Metrics, 1)
	assert.Equal(t, 0.0, out.Metrics[0].Value)
	findings, ok := out.Metadata[MetaValidationFindings].([]string)
	require.True(t, ok)
	assert.NotEmpty(t, findings)
}

func TestTranscript_AppendsPerTurn(t *testing.T) {
	dir := t.TempDir()
	p, err := NewTranscript(dir)
	require.NoError(t, err)

	turn1 := twoActorState().
		WithCommunication(core.NewCommunication(1, "broadcast", "north", nil, "Opening statement.")).
		WithDecision(core.Decision{Actor: "north", Turn: 1, Action: "open talks", Reasoning: "start soft"}).
		WithWorldState(core.WorldState{Turn: 1, Content: "Talks have opened."})

	_, err = p.Execute(context.Background(), turn1)
	require.NoError(t, err)

	turn2 := turn1.WithTurn(2).
		WithWorldState(core.WorldState{Turn: 2, Content: "Positions harden."})
	_, err = p.Execute(context.Background(), turn2)
	require.NoError(t, err)

	data, err := os.ReadFile(p.Path())
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# summit")
	assert.Contains(t, text, "## Turn 1")
	assert.Contains(t, text, "## Turn 2")
	assert.Contains(t, text, "Opening statement.")
	assert.Contains(t, text, "> start soft")
	assert.Contains(t, text, "Positions harden.")
}
