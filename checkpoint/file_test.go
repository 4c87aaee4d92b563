package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

func sampleState(t *testing.T) core.ScenarioState {
	t.Helper()

	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	s := core.NewScenarioState("summit", "Climate Summit")
	s = s.WithActor(core.ActorState{
		Key:                "north",
		Name:               "Northern Alliance",
		ShortName:          "North",
		Model:              "mock-model",
		CurrentGoals:       []string{"secure funding", "delay targets"},
		PrivateInformation: "reserves are lower than published",
	})
	s = s.WithActor(core.ActorState{Key: "south", Name: "Southern Coalition"})
	s = s.WithStarted().WithTurn(2)
	s = s.WithWorldState(core.WorldState{Turn: 2, Content: "Negotiations stall over financing."})
	s = s.WithDecision(core.Decision{
		Actor: "north", Turn: 2,
		Goals:     []string{"secure funding"},
		Reasoning: "funding unlocks everything else",
		Action:    "propose a joint fund",
	})
	s = s.WithCommunication(core.Communication{
		ID: "c-1", Turn: 1, Type: "broadcast", Sender: "north",
		Content: "We need a shared fund.", Timestamp: base,
	})
	s = s.WithCommunication(core.Communication{
		ID: "c-2", Turn: 2, Type: "direct", Sender: "south",
		Recipients: []core.ActorKey{"north"},
		Content:    "Show us the numbers first.", Timestamp: base.Add(time.Minute),
	})
	s = s.WithCost(core.CostRecord{
		Timestamp: base, Turn: 1, Actor: "north", Phase: core.PhaseCommunication,
		Model: "mock-model", InputTokens: 120, OutputTokens: 80, Cost: 0.02,
	})
	s = s.WithCost(core.CostRecord{
		Timestamp: base.Add(time.Second), Turn: 2, Actor: "south", Phase: core.PhaseDecision,
		Model: "mock-model", InputTokens: 200, OutputTokens: 150, Cost: 0.05,
	})
	s = s.WithCost(core.CostRecord{
		Timestamp: base.Add(2 * time.Second), Turn: 2, Actor: "north", Phase: core.PhaseWorldUpdate,
		Model: "mock-model", InputTokens: 90, OutputTokens: 60, Cost: 0.01,
	})
	s = s.WithMetric(core.MetricRecord{Turn: 2, Name: "tension", Value: 0.7, Timestamp: base})
	s = s.WithMetadata("seed", "42")
	return s
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	original := sampleState(t)
	path, err := store.Save(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "turn_0002.json"), path)

	loaded, err := store.LoadTurn(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, original.ScenarioID, loaded.ScenarioID)
	assert.Equal(t, original.ScenarioName, loaded.ScenarioName)
	assert.Equal(t, original.RunID, loaded.RunID)
	assert.Equal(t, original.Turn, loaded.Turn)
	assert.Equal(t, original.Status, loaded.Status)
	assert.Equal(t, original.WorldState, loaded.WorldState)
	assert.Equal(t, original.Actors, loaded.Actors)
	assert.Equal(t, original.Decisions, loaded.Decisions)

	require.Len(t, loaded.Communications, 2)
	require.Len(t, loaded.Costs, 3)
	require.Len(t, loaded.Metrics, 1)
	assert.Equal(t, original.Communications, loaded.Communications)
	assert.Equal(t, original.Costs, loaded.Costs)
	assert.Equal(t, original.Metrics, loaded.Metrics)
	assert.InDelta(t, original.TotalCost(), loaded.TotalCost(), 1e-12)
}

func TestFileStore_ResaveOverwritesIdempotently(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := sampleState(t)
	_, err = store.Save(context.Background(), s)
	require.NoError(t, err)

	updated := s.WithMetadata("note", "second write")
	_, err = store.Save(context.Background(), updated)
	require.NoError(t, err)

	turns, err := store.Turns()
	require.NoError(t, err)
	assert.Equal(t, []int{2}, turns)

	loaded, err := store.LoadTurn(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "second write", loaded.Metadata["note"])
}

func TestFileStore_LoadLatest(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := sampleState(t)
	for turn := 1; turn <= 3; turn++ {
		_, err := store.Save(context.Background(), s.WithTurn(turn))
		require.NoError(t, err)
	}

	latest, err := store.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Turn)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadTurn(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.LoadLatest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_RejectsMajorVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turn_0001.json")
	artifact := fmt.Sprintf(`{"version": "2.0", "scenario_id": "x", "run_id": "r", "turn": 1, "status": %q}`, core.StatusRunning)
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLoad_AcceptsMinorVersionDrift(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turn_0001.json")
	artifact := fmt.Sprintf(`{"version": "1.3", "scenario_id": "x", "run_id": "r", "turn": 1, "status": %q}`, core.StatusRunning)
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Turn)
}

func TestLoad_RejectsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turn_0001.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionMismatch)
}

func TestMemoryStore_MirrorsFileSemantics(t *testing.T) {
	store := NewMemoryStore()
	s := sampleState(t)

	_, err := store.Save(context.Background(), s)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), s.WithTurn(3))
	require.NoError(t, err)

	loaded, err := store.LoadTurn(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, s.Costs, loaded.Costs)

	latest, err := store.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Turn)

	// Mutating the loaded copy must not leak back into the store.
	loaded.Actors["north"] = core.ActorState{Key: "north", Name: "changed"}
	again, err := store.LoadTurn(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Northern Alliance", again.Actors["north"].Name)

	_, err = store.LoadTurn(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
