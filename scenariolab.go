// Package scenariolab provides a high-level façade over the orchestration
// engine and its services (event bus, checkpointing, built-in phases,
// logging) enabling rapid construction of turn-based multi-actor
// simulations. Most applications interact with this package by:
//  1. Loading a scenario definition (LoadScenario) or building one in code
//  2. Creating a Lab via New() (optionally overriding defaults)
//  3. Running it (Run), resuming a checkpoint (Resume) or forking one
//     (BranchAndRun)
//
// The façade delegates orchestration to engine.Orchestrator through the
// runner composition root while keeping setup and usage ergonomics concise.
// All defaults are safe for local development and testing; production
// deployments typically supply real model adapters, a durable checkpoint
// directory and a structured logger.
package scenariolab

import (
	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/config"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/runner"
)

// Re-exported core types so small programs import one package.
type (
	// Event is one occurrence on the run's event bus.
	Event = core.Event

	// EventType names a bus event.
	EventType = core.EventType

	// ScenarioState is the immutable state aggregate for one run.
	ScenarioState = core.ScenarioState

	// Scenario is a parsed scenario definition.
	Scenario = config.ScenarioConfig

	// Lab assembles and drives scenario runs.
	Lab = runner.Runner

	// Options configures a Lab.
	Options = runner.Options
)

// LoadScenario reads and parses a YAML scenario definition.
func LoadScenario(path string) (*Scenario, error) { return config.Load(path) }

// ParseScenario parses a YAML scenario definition from memory.
func ParseScenario(data []byte) (*Scenario, error) { return config.Parse(data) }

// New creates a Lab for the given scenario definition.
func New(cfg *Scenario, optFns ...func(o *Options)) (*Lab, error) {
	return runner.New(cfg, optFns...)
}

// NewBus creates a standalone event bus, for programs assembling the engine
// by hand.
func NewBus() *bus.Bus { return bus.New() }

// Re-exported runner options.
var (
	WithCheckpointDir = runner.WithCheckpointDir
	WithTranscriptDir = runner.WithTranscriptDir
	WithAnalyticsDSN  = runner.WithAnalyticsDSN
	WithMaxModelCalls = runner.WithMaxModelCalls
	WithModelFactory  = runner.WithModelFactory
	WithLogger        = runner.WithLogger
)
