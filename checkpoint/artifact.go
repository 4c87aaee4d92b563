package checkpoint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// SchemaVersion is the artifact schema written by this package, in
// major.minor form. Readers reject artifacts whose major component differs.
const SchemaVersion = "1.0"

// Artifact is the on-disk representation of one checkpoint: the schema
// version plus the complete scenario state. Collections are stored whole,
// never as deltas, so a single artifact reconstructs the run without
// replaying its predecessors.
type Artifact struct {
	Version string `json:"version"`
	core.ScenarioState
}

// newArtifact wraps a state in the current schema version.
func newArtifact(state core.ScenarioState) Artifact {
	return Artifact{Version: SchemaVersion, ScenarioState: state}
}

// Marshal serializes the artifact as indented JSON, stable enough for
// humans to diff two checkpoints of the same run.
func (a Artifact) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// Unmarshal parses artifact bytes and validates the schema version before
// any state is handed to the caller.
func Unmarshal(data []byte) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if err := checkVersion(a.Version); err != nil {
		return Artifact{}, err
	}
	if !a.Status.IsValid() {
		return Artifact{}, fmt.Errorf("failed to parse checkpoint: unknown status %q", a.Status)
	}
	return a, nil
}

// checkVersion compares the major component of v against SchemaVersion.
func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: artifact carries no version", ErrVersionMismatch)
	}
	if majorOf(v) != majorOf(SchemaVersion) {
		return fmt.Errorf("%w: artifact version %s, supported %s", ErrVersionMismatch, v, SchemaVersion)
	}
	return nil
}

func majorOf(v string) string {
	if i := strings.IndexByte(v, '.'); i >= 0 {
		return v[:i]
	}
	return v
}
