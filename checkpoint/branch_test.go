package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// fiveTurnRun saves a checkpoint per turn for a deterministic five-turn run
// and returns its directory plus the final state.
func fiveTurnRun(t *testing.T) (string, core.ScenarioState) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s := core.NewScenarioState("border-dispute", "Border Dispute")
	s = s.WithActor(core.ActorState{Key: "east", Name: "East"})
	s = s.WithStarted()

	for turn := 1; turn <= 5; turn++ {
		s = s.WithTurn(turn)
		s = s.WithCommunication(core.Communication{
			ID: core.NewID(), Turn: turn, Type: "broadcast", Sender: "east",
			Content: "update", Timestamp: base,
		})
		s = s.WithDecision(core.Decision{Actor: "east", Turn: turn, Action: "hold"})
		s = s.WithCost(core.CostRecord{Timestamp: base, Turn: turn, Actor: "east",
			Phase: core.PhaseDecision, Cost: 0.10})
		s = s.WithMetric(core.MetricRecord{Turn: turn, Name: "tension",
			Value: float64(turn) / 10, Timestamp: base})
		s = s.WithWorldState(core.WorldState{Turn: turn, Content: worldContent(turn)})
		_, err := store.Save(context.Background(), s)
		require.NoError(t, err)
	}

	return dir, s
}

func worldContent(turn int) string {
	return "world after turn " + string(rune('0'+turn))
}

func TestBranch_FullTruncation(t *testing.T) {
	dir, source := fiveTurnRun(t)
	newDir := t.TempDir()

	branched, err := Branch(dir, 2, newDir)
	require.NoError(t, err)

	assert.Equal(t, 2, branched.Turn)
	assert.Equal(t, core.StatusRunning, branched.Status)
	assert.NotEqual(t, source.RunID, branched.RunID)
	assert.Equal(t, source.ScenarioID, branched.ScenarioID)

	assert.Equal(t, source.RunID, branched.Metadata[MetaBranchedFrom])
	assert.Equal(t, 2, branched.Metadata[MetaBranchPoint])
	assert.NotEmpty(t, branched.Metadata[MetaBranchCreated])

	for _, c := range branched.Communications {
		assert.LessOrEqual(t, c.Turn, 2)
	}
	for _, d := range branched.Decisions {
		assert.LessOrEqual(t, d.Turn, 2)
	}
	for _, c := range branched.Costs {
		assert.LessOrEqual(t, c.Turn, 2)
	}
	for _, m := range branched.Metrics {
		assert.LessOrEqual(t, m.Turn, 2)
	}
	assert.Len(t, branched.Communications, 2)
	assert.Len(t, branched.Costs, 2)
	assert.Len(t, branched.Metrics, 2)
	assert.InDelta(t, 0.20, branched.TotalCost(), 1e-9)

	// The branch uses the world state as it stood at the branch turn, not
	// the final one.
	assert.Equal(t, worldContent(2), branched.WorldState.Content)
	assert.Equal(t, 2, branched.WorldState.Turn)
}

func TestBranch_SavedIntoNewDirAndResumable(t *testing.T) {
	dir, _ := fiveTurnRun(t)
	newDir := t.TempDir()

	branched, err := Branch(dir, 3, newDir)
	require.NoError(t, err)

	store, err := NewFileStore(newDir)
	require.NoError(t, err)
	loaded, err := store.LoadLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, branched.RunID, loaded.RunID)
	assert.Equal(t, 3, loaded.Turn)
	assert.True(t, loaded.Status.CanResume())
}

func TestBranch_InvalidPoint(t *testing.T) {
	dir, _ := fiveTurnRun(t)

	_, err := Branch(dir, 6, t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidBranchPoint)

	_, err = Branch(dir, -1, t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidBranchPoint)

	// Source run stays intact after a rejected branch.
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	turns, err := store.Turns()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, turns)
}

func TestBranch_AtTurnZeroResetsHistory(t *testing.T) {
	dir, _ := fiveTurnRun(t)

	branched, err := Branch(dir, 0, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, branched.Turn)
	assert.Empty(t, branched.Communications)
	assert.Empty(t, branched.Costs)
	assert.Empty(t, branched.Metrics)
	assert.Empty(t, branched.Decisions)
	assert.Zero(t, branched.TotalCost())
}

func TestBranch_MissingSource(t *testing.T) {
	_, err := Branch(t.TempDir()+"/nope", 1, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBranch_FromSingleArtifactFile(t *testing.T) {
	dir, _ := fiveTurnRun(t)
	path, err := LatestPath(dir)
	require.NoError(t, err)

	branched, err := Branch(path, 4, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 4, branched.Turn)
	assert.Len(t, branched.Costs, 4)
}
