package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// turnFilePattern names the artifact for one turn. Zero-padding keeps
// lexical directory order equal to turn order.
const turnFilePattern = "turn_%04d.json"

// FileOptions configures a FileStore.
type FileOptions struct {
	// Logger records checkpoint writes and load failures.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// DirMode is the permission mode for created run directories.
	DirMode os.FileMode

	// FileMode is the permission mode for written artifacts.
	FileMode os.FileMode
}

// FileStore persists checkpoints as one JSON artifact per turn inside a
// single run directory. Writes are atomic from a reader's perspective: the
// artifact is written to a temp file in the same directory and renamed into
// place, so a concurrent reader sees either the old complete artifact or the
// new complete artifact, never a partial one. Re-saving a turn overwrites
// idempotently.
type FileStore struct {
	dir      string
	fileMode os.FileMode
	logger   logging.Logger
	mu       sync.Mutex
}

// NewFileStore creates the run directory if needed and returns a store
// scoped to it.
func NewFileStore(dir string, optFns ...func(o *FileOptions)) (*FileStore, error) {
	opts := FileOptions{
		Logger:   logging.NoOpLogger{},
		DirMode:  0o755,
		FileMode: 0o644,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, opts.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &FileStore{
		dir:      dir,
		fileMode: opts.FileMode,
		logger:   core.EnsureLogger(opts.Logger),
	}, nil
}

// Dir returns the run directory this store writes into.
func (s *FileStore) Dir() string { return s.dir }

// Save writes the state as the artifact for its turn and returns the path
// written. It implements core.CheckpointStore.
func (s *FileStore) Save(ctx context.Context, state core.ScenarioState) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := newArtifact(state).Marshal()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf(turnFilePattern, state.Turn))
	tmp, err := os.CreateTemp(s.dir, "checkpoint-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved", "path", path, "turn", state.Turn, "run_id", state.RunID)

	return path, nil
}

// LoadTurn reads the artifact for one turn. It implements
// core.CheckpointStore.
func (s *FileStore) LoadTurn(ctx context.Context, turn int) (core.ScenarioState, error) {
	if err := ctx.Err(); err != nil {
		return core.ScenarioState{}, err
	}
	return Load(filepath.Join(s.dir, fmt.Sprintf(turnFilePattern, turn)))
}

// LoadLatest reads the artifact with the highest turn number. It implements
// core.CheckpointStore.
func (s *FileStore) LoadLatest(ctx context.Context) (core.ScenarioState, error) {
	if err := ctx.Err(); err != nil {
		return core.ScenarioState{}, err
	}
	path, err := LatestPath(s.dir)
	if err != nil {
		return core.ScenarioState{}, err
	}
	return Load(path)
}

// Turns lists the turn numbers with a saved artifact, ascending.
func (s *FileStore) Turns() ([]int, error) {
	paths, err := turnPaths(s.dir)
	if err != nil {
		return nil, err
	}
	turns := make([]int, 0, len(paths))
	for _, p := range paths {
		var turn int
		if _, err := fmt.Sscanf(filepath.Base(p), turnFilePattern, &turn); err == nil {
			turns = append(turns, turn)
		}
	}
	return turns, nil
}

// Load reads and validates a single artifact file, reconstructing the state
// with original ordering and timestamps.
func Load(path string) (core.ScenarioState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ScenarioState{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return core.ScenarioState{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	a, err := Unmarshal(data)
	if err != nil {
		return core.ScenarioState{}, err
	}
	return a.ScenarioState, nil
}

// LatestPath returns the artifact path with the highest turn in a run
// directory, or ErrNotFound when the directory holds no checkpoints.
func LatestPath(dir string) (string, error) {
	paths, err := turnPaths(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no checkpoints in %s", ErrNotFound, dir)
	}
	return paths[len(paths)-1], nil
}

// turnPaths lists turn artifacts sorted ascending. Zero-padded names make
// lexical sort equal to numeric sort.
func turnPaths(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "turn_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint directory: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
