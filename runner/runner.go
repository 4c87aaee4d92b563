package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Itangalo/scenario-lab-sub001/analytics"
	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/checkpoint"
	"github.com/Itangalo/scenario-lab-sub001/config"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/engine"
	"github.com/Itangalo/scenario-lab-sub001/logging"
	"github.com/Itangalo/scenario-lab-sub001/model"
	"github.com/Itangalo/scenario-lab-sub001/model/anthropic"
	"github.com/Itangalo/scenario-lab-sub001/model/openai"
	"github.com/Itangalo/scenario-lab-sub001/phase"
)

// ModelFactory resolves a configured model name to an adapter. The returned
// model is reused for every call the run makes under that name.
type ModelFactory func(name string) (model.Model, error)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// CheckpointDir is the base directory for run artifacts. Each run writes
	// into a subdirectory named after its run ID.
	CheckpointDir string

	// TranscriptDir enables the markdown transcript phase when non-empty.
	// A per-run subdirectory is created the same way as for checkpoints.
	TranscriptDir string

	// AnalyticsDSN enables the sqlite analytics recorder when non-empty.
	AnalyticsDSN string

	// MaxModelCalls bounds model calls per run; zero disables the limiter.
	MaxModelCalls int

	// ModelFactory overrides model resolution, mainly for tests.
	ModelFactory ModelFactory

	// Logging services.
	Logger logging.Logger
}

// Runner assembles and drives one scenario. It resolves models, registers
// the built-in phases, and routes Run/Resume/BranchAndRun through a fresh
// orchestrator per execution so each run gets its own checkpoint directory.
type Runner struct {
	cfg *config.ScenarioConfig

	checkpointDir string
	transcriptDir string
	analyticsDSN  string
	maxModelCalls int
	factory       ModelFactory
	logger        logging.Logger

	eventBus *bus.Bus
	recorder *analytics.Recorder

	mu      sync.Mutex
	current *engine.Orchestrator
}

// New constructs a Runner for the given scenario definition.
func New(cfg *config.ScenarioConfig, optFns ...func(o *Options)) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scenario config is nil")
	}

	opts := Options{
		CheckpointDir: "checkpoints",
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ModelFactory == nil {
		opts.ModelFactory = DefaultModelFactory
	}

	r := &Runner{
		cfg:           cfg,
		checkpointDir: opts.CheckpointDir,
		transcriptDir: opts.TranscriptDir,
		analyticsDSN:  opts.AnalyticsDSN,
		maxModelCalls: opts.MaxModelCalls,
		factory:       opts.ModelFactory,
		logger:        core.EnsureLogger(opts.Logger),
		eventBus:      bus.New(),
	}

	if opts.AnalyticsDSN != "" {
		rec, err := analytics.NewRecorder(opts.AnalyticsDSN, func(o *analytics.Options) {
			o.Logger = r.logger
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up analytics: %w", err)
		}
		rec.Attach(r.eventBus)
		r.recorder = rec
	}

	return r, nil
}

// WithCheckpointDir sets the base directory for checkpoint artifacts.
func WithCheckpointDir(dir string) func(o *Options) {
	return func(o *Options) { o.CheckpointDir = dir }
}

// WithTranscriptDir enables the markdown transcript under dir.
func WithTranscriptDir(dir string) func(o *Options) {
	return func(o *Options) { o.TranscriptDir = dir }
}

// WithAnalyticsDSN enables the sqlite analytics recorder.
func WithAnalyticsDSN(dsn string) func(o *Options) {
	return func(o *Options) { o.AnalyticsDSN = dsn }
}

// WithMaxModelCalls bounds the number of model calls per run.
func WithMaxModelCalls(n int) func(o *Options) {
	return func(o *Options) { o.MaxModelCalls = n }
}

// WithModelFactory overrides how configured model names become adapters.
func WithModelFactory(f ModelFactory) func(o *Options) {
	return func(o *Options) { o.ModelFactory = f }
}

// WithLogger sets the logger shared by the engine, phases and stores.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Bus exposes the event bus for external subscribers (API, custom handlers).
func (r *Runner) Bus() *bus.Bus { return r.eventBus }

// Close releases attached sinks. The Runner is unusable afterwards.
func (r *Runner) Close() error {
	if r.recorder != nil {
		return r.recorder.Close()
	}
	return nil
}

// Run starts a fresh run from the scenario's initial state. It returns the
// terminal (or paused) state; the run's checkpoints live under the returned
// state's run ID inside the checkpoint base directory.
func (r *Runner) Run(ctx context.Context) (core.ScenarioState, error) {
	state := r.cfg.NewState()
	return r.execute(ctx, state, r.runDir(r.checkpointDir, state.RunID))
}

// Resume loads the latest checkpoint in dir and continues the run where it
// stopped. Terminal runs return as-is without executing any turns.
func (r *Runner) Resume(ctx context.Context, dir string) (core.ScenarioState, error) {
	store, err := checkpoint.NewFileStore(dir, r.storeOptions()...)
	if err != nil {
		return core.ScenarioState{}, err
	}
	state, err := store.LoadLatest(ctx)
	if err != nil {
		return core.ScenarioState{}, fmt.Errorf("failed to load checkpoint from %s: %w", dir, err)
	}
	return r.executeWithStore(ctx, state, store, dir)
}

// BranchAndRun forks the run at source (a checkpoint file or run directory)
// at the given turn into newDir, then executes the branch to completion.
func (r *Runner) BranchAndRun(ctx context.Context, source string, atTurn int, newDir string) (core.ScenarioState, error) {
	if _, err := checkpoint.Branch(source, atTurn, newDir); err != nil {
		return core.ScenarioState{}, err
	}
	return r.Resume(ctx, newDir)
}

// Pause requests a pause at the next turn boundary of the active execution.
func (r *Runner) Pause() {
	if o := r.orchestrator(); o != nil {
		o.Pause()
	}
}

// ClearPause withdraws a pending pause request; restarting a paused run is
// done with the Resume execution method.
func (r *Runner) ClearPause() {
	if o := r.orchestrator(); o != nil {
		o.Resume()
	}
}

// Stop requests a halt at the next turn boundary of the active execution.
func (r *Runner) Stop() {
	if o := r.orchestrator(); o != nil {
		o.Stop()
	}
}

// State returns the latest state snapshot of the active (or most recent)
// execution, or a zero state when nothing has run yet.
func (r *Runner) State() core.ScenarioState {
	if o := r.orchestrator(); o != nil {
		return o.State()
	}
	return core.ScenarioState{}
}

// Control is the pause/resume/stop/state handle the monitoring API consumes.
// Resume here means withdrawing a pause request, matching the engine's
// control semantics.
type Control struct{ r *Runner }

// Control returns a handle that tracks whichever execution is active.
func (r *Runner) Control() Control { return Control{r: r} }

// Pause requests a pause at the next turn boundary.
func (c Control) Pause() { c.r.Pause() }

// Resume withdraws a pending pause request.
func (c Control) Resume() { c.r.ClearPause() }

// Stop requests a halt at the next turn boundary.
func (c Control) Stop() { c.r.Stop() }

// State returns the latest state snapshot.
func (c Control) State() core.ScenarioState { return c.r.State() }

func (r *Runner) orchestrator() *engine.Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// execute builds the per-run file store, then runs.
func (r *Runner) execute(ctx context.Context, state core.ScenarioState, dir string) (core.ScenarioState, error) {
	store, err := checkpoint.NewFileStore(dir, r.storeOptions()...)
	if err != nil {
		return core.ScenarioState{}, err
	}
	return r.executeWithStore(ctx, state, store, dir)
}

func (r *Runner) executeWithStore(ctx context.Context, state core.ScenarioState, store core.CheckpointStore, dir string) (core.ScenarioState, error) {
	cfg, err := r.scenarioFor(state)
	if err != nil {
		return core.ScenarioState{}, err
	}

	orch := engine.New(r.eventBus,
		engine.WithMaxTurns(maxTurns(cfg)),
		engine.WithCreditLimit(cfg.CreditLimit),
		engine.WithCheckpointStore(store),
		engine.WithLogger(r.logger),
	)
	if err := r.registerPhases(orch, cfg, dir); err != nil {
		return core.ScenarioState{}, err
	}

	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return core.ScenarioState{}, fmt.Errorf("an execution is already active")
	}
	r.current = orch
	r.mu.Unlock()

	final, err := orch.Execute(ctx, state)

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()

	return final, err
}

// scenarioFor returns the runner's own config for fresh runs, or rebuilds
// one from the definition a checkpoint carried so a resumed run matches the
// scenario it was started from.
func (r *Runner) scenarioFor(state core.ScenarioState) (*config.ScenarioConfig, error) {
	if len(state.Config) == 0 || state.ScenarioID == r.cfg.ScenarioID() {
		return r.cfg, nil
	}
	raw, err := yaml.Marshal(state.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild scenario config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild scenario config: %w", err)
	}
	return cfg, nil
}

// registerPhases wires the built-in phase services for this scenario.
func (r *Runner) registerPhases(orch *engine.Orchestrator, cfg *config.ScenarioConfig, runDir string) error {
	models, err := r.resolveModels(cfg)
	if err != nil {
		return err
	}
	narrator, err := r.narratorModel(cfg, models)
	if err != nil {
		return err
	}

	var phaseOpts []func(o *phase.Options)
	phaseOpts = append(phaseOpts, phase.WithLogger(r.logger))
	if r.maxModelCalls > 0 {
		limiter := core.NewModelLimiter(r.maxModelCalls)
		phaseOpts = append(phaseOpts, phase.WithLimiter(limiter))
	}

	orch.RegisterPhase(core.PhaseCommunication, phase.NewCommunication(models, phaseOpts...))
	orch.RegisterPhase(core.PhaseDecision, phase.NewDecision(models, phaseOpts...))
	orch.RegisterPhase(core.PhaseWorldUpdate, phase.NewWorldUpdate(narrator, phaseOpts...))
	orch.RegisterPhase(core.PhaseValidation, phase.NewValidation(phaseOpts...))

	if r.transcriptDir != "" {
		dir := r.runDir(r.transcriptDir, filepath.Base(runDir))
		transcript, err := phase.NewTranscript(dir, phaseOpts...)
		if err != nil {
			return fmt.Errorf("failed to set up transcript: %w", err)
		}
		orch.RegisterPhase(core.PhasePersistence, transcript)
	}

	return nil
}

// resolveModels builds the per-actor model map. Actors without a configured
// model are left out; the communication and decision phases skip them.
func (r *Runner) resolveModels(cfg *config.ScenarioConfig) (map[core.ActorKey]model.Model, error) {
	models := make(map[core.ActorKey]model.Model, len(cfg.Actors))
	cache := map[string]model.Model{}

	for _, a := range cfg.Actors {
		if a.Model == "" {
			continue
		}
		m, ok := cache[a.Model]
		if !ok {
			var err error
			m, err = r.factory(a.Model)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve model %q for actor %q: %w", a.Model, a.Name, err)
			}
			cache[a.Model] = m
		}
		models[a.ActorKey()] = m
	}
	return models, nil
}

// narratorModel picks the model driving world updates: an explicit
// metadata["narrator_model"] entry if present, otherwise the first
// configured actor model, otherwise a mock.
func (r *Runner) narratorModel(cfg *config.ScenarioConfig, models map[core.ActorKey]model.Model) (model.Model, error) {
	if name, ok := cfg.Metadata["narrator_model"].(string); ok && name != "" {
		return r.factory(name)
	}
	for _, a := range cfg.Actors {
		if a.Model != "" {
			return r.factory(a.Model)
		}
	}
	return model.NewMockModel("narrator-mock"), nil
}

func (r *Runner) storeOptions() []func(o *checkpoint.FileOptions) {
	return []func(o *checkpoint.FileOptions){
		func(o *checkpoint.FileOptions) { o.Logger = r.logger },
	}
}

// runDir scopes a base directory to one run. Short run-ID prefixes keep
// paths readable; collisions within one base dir are not a practical
// concern for UUID prefixes.
func (r *Runner) runDir(base, runID string) string {
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(base, r.cfg.ScenarioID(), id)
}

func maxTurns(cfg *config.ScenarioConfig) int {
	if cfg.MaxTurns > 0 {
		return cfg.MaxTurns
	}
	return engine.DefaultMaxTurns
}

// DefaultModelFactory routes model names by prefix: claude models go to the
// Anthropic adapter, gpt/o-series to OpenAI, and names starting with "mock"
// to a scripted mock. API keys come from the conventional environment
// variables; a missing key is an error at wiring time, not call time.
func DefaultModelFactory(name string) (model.Model, error) {
	switch {
	case strings.HasPrefix(name, "mock"):
		return model.NewMockModel(name), nil

	case strings.HasPrefix(name, "claude"):
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("model %q requires ANTHROPIC_API_KEY", name)
		}
		return anthropic.New(anthropic.WithModel(name)), nil

	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"), strings.HasPrefix(name, "o4"):
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("model %q requires OPENAI_API_KEY", name)
		}
		return openai.New(openai.WithModel(name)), nil
	}
	return nil, fmt.Errorf("unknown model %q: expected a claude*, gpt*, o-series or mock* name", name)
}
