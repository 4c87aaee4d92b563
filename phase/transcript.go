package phase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// transcriptFile is the markdown file maintained per run directory.
const transcriptFile = "transcript.md"

// Transcript renders each turn's communications, decisions and world state
// into a human-readable markdown file, one section appended per turn. The
// file is rewritten whole through a temp file and rename, like the
// checkpoint store, so readers never see a torn write. It fills the
// persistence phase slot.
type Transcript struct {
	dir    string
	logger logging.Logger
	mu     sync.Mutex
}

// NewTranscript creates the transcript phase writing into dir.
func NewTranscript(dir string, optFns ...func(o *Options)) (*Transcript, error) {
	opts := applyOptions("", optFns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &Transcript{dir: dir, logger: opts.Logger}, nil
}

// Path returns the transcript file location.
func (p *Transcript) Path() string { return filepath.Join(p.dir, transcriptFile) }

// Execute implements core.PhaseService.
func (p *Transcript) Execute(_ context.Context, state core.ScenarioState) (core.ScenarioState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.Path()
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return state, fmt.Errorf("failed to read transcript: %w", err)
	}
	if len(existing) == 0 {
		existing = []byte(fmt.Sprintf("# %s\n\nRun `%s`\n", state.ScenarioName, state.RunID))
	}

	content := append(existing, []byte(p.renderTurn(state))...)

	tmp, err := os.CreateTemp(p.dir, "transcript-*.tmp")
	if err != nil {
		return state, fmt.Errorf("failed to write transcript: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return state, fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return state, fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return state, fmt.Errorf("failed to finalize transcript: %w", err)
	}

	p.logger.Debug("transcript updated", "path", path, "turn", state.Turn)
	return state, nil
}

func (p *Transcript) renderTurn(state core.ScenarioState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Turn %d\n\n", state.Turn)

	if comms := state.TurnCommunications(state.Turn); len(comms) > 0 {
		b.WriteString("### Communications\n\n")
		for _, c := range comms {
			fmt.Fprintf(&b, "**%s**: %s\n\n", p.displayName(state, c.Sender), c.Content)
		}
	}

	if len(state.Decisions) > 0 {
		b.WriteString("### Decisions\n\n")
		for _, key := range sortedActorKeys(state) {
			d, ok := state.Decisions[key]
			if !ok || d.Turn != state.Turn {
				continue
			}
			fmt.Fprintf(&b, "**%s** acts: %s\n\n", p.displayName(state, key), d.Action)
			if d.Reasoning != "" {
				fmt.Fprintf(&b, "> %s\n\n", d.Reasoning)
			}
		}
	}

	b.WriteString("### World state\n\n")
	b.WriteString(strings.TrimSpace(state.WorldState.Content))
	b.WriteString("\n")
	fmt.Fprintf(&b, "\n*Cumulative cost: $%.4f*\n", state.TotalCost())
	return b.String()
}

func (p *Transcript) displayName(state core.ScenarioState, key core.ActorKey) string {
	if actor, ok := state.Actors[key]; ok && actor.Name != "" {
		return actor.Name
	}
	if key == "" {
		return "narrator"
	}
	return string(key)
}
