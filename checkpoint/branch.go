package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// Metadata keys recorded on every branched state.
const (
	MetaBranchedFrom  = "branched_from"
	MetaBranchPoint   = "branch_point"
	MetaBranchCreated = "branch_created"
)

// Branch forks a run from a saved checkpoint at atTurn into a new run
// directory. sourcePath may be a run directory or a single artifact file;
// for a directory the artifact saved at atTurn is preferred, falling back to
// the latest one when a turn was never checkpointed individually.
//
// The branched state carries turn = atTurn, status RUNNING, a fresh run ID
// and branch provenance in metadata. History is fully truncated: decisions
// and communications strictly after atTurn are dropped, costs and metrics
// are filtered to turn <= atTurn. A branch is therefore indistinguishable
// from a run that was always this length, and its cost provenance stops at
// the branch point.
//
// The result is saved into newDir so the branched run is immediately
// resumable, and is returned for direct execution. The source run is never
// modified; an out-of-range atTurn fails with ErrInvalidBranchPoint before
// any state is constructed.
func Branch(sourcePath string, atTurn int, newDir string) (core.ScenarioState, error) {
	source, err := loadBranchSource(sourcePath, atTurn)
	if err != nil {
		return core.ScenarioState{}, err
	}

	if atTurn < 0 || atTurn > source.Turn {
		return core.ScenarioState{}, fmt.Errorf("%w: turn %d outside [0, %d]",
			ErrInvalidBranchPoint, atTurn, source.Turn)
	}

	branched := truncateAfter(source, atTurn)
	branched.RunID = core.NewID()
	branched.Status = core.StatusRunning
	branched.Turn = atTurn
	branched.CurrentPhase = ""
	branched.Error = ""
	branched = branched.
		WithMetadata(MetaBranchedFrom, source.RunID).
		WithMetadata(MetaBranchPoint, atTurn).
		WithMetadata(MetaBranchCreated, time.Now().UTC().Format(time.RFC3339))

	store, err := NewFileStore(newDir)
	if err != nil {
		return core.ScenarioState{}, err
	}
	if _, err := store.Save(context.Background(), branched); err != nil {
		return core.ScenarioState{}, err
	}

	return branched, nil
}

// loadBranchSource resolves sourcePath to a concrete artifact. A checkpoint
// written at the branch turn preserves the world state as it stood then;
// the latest artifact is only a fallback for runs checkpointed sparsely.
func loadBranchSource(sourcePath string, atTurn int) (core.ScenarioState, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ScenarioState{}, fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
		}
		return core.ScenarioState{}, fmt.Errorf("failed to read branch source: %w", err)
	}

	if !info.IsDir() {
		return Load(sourcePath)
	}

	if atTurn >= 0 {
		atPath := filepath.Join(sourcePath, fmt.Sprintf(turnFilePattern, atTurn))
		if _, err := os.Stat(atPath); err == nil {
			return Load(atPath)
		}
	}

	path, err := LatestPath(sourcePath)
	if err != nil {
		return core.ScenarioState{}, err
	}
	return Load(path)
}

// truncateAfter drops all history recorded after the branch point.
func truncateAfter(s core.ScenarioState, atTurn int) core.ScenarioState {
	out := s.Clone()

	decisions := make(map[core.ActorKey]core.Decision)
	for k, d := range out.Decisions {
		if d.Turn <= atTurn {
			decisions[k] = d
		}
	}
	out.Decisions = decisions

	comms := out.Communications[:0]
	for _, c := range out.Communications {
		if c.Turn <= atTurn {
			comms = append(comms, c)
		}
	}
	out.Communications = comms

	costs := out.Costs[:0]
	for _, c := range out.Costs {
		if c.Turn <= atTurn {
			costs = append(costs, c)
		}
	}
	out.Costs = costs

	metrics := out.Metrics[:0]
	for _, m := range out.Metrics {
		if m.Turn <= atTurn {
			metrics = append(metrics, m)
		}
	}
	out.Metrics = metrics

	if out.WorldState.Turn > atTurn {
		out.WorldState.Turn = atTurn
	}

	return out
}
