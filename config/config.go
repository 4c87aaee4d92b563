// Package config loads YAML scenario definitions and builds the initial
// state for a run. Validation is structural only: the engine does not judge
// scenario content, it just needs a name and at least one actor to
// orchestrate.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

var (
	// ErrNoName is returned when a scenario definition lacks a name.
	ErrNoName = fmt.Errorf("scenario has no name")

	// ErrNoActors is returned when a scenario definition lists no actors.
	ErrNoActors = fmt.Errorf("scenario has no actors")
)

// ActorConfig defines one actor of the scenario.
type ActorConfig struct {
	// Key is the stable identifier; derived from Name when omitted.
	Key                string   `yaml:"key,omitempty"`
	Name               string   `yaml:"name"`
	ShortName          string   `yaml:"short_name,omitempty"`
	Model              string   `yaml:"model,omitempty"`
	Goals              []string `yaml:"goals,omitempty"`
	PrivateInformation string   `yaml:"private_information,omitempty"`
}

// MetricConfig names a metric the scenario wants tracked. The description is
// free text consumed by whatever extracts the metric; the engine only
// carries it.
type MetricConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// ScenarioConfig is a parsed scenario definition.
type ScenarioConfig struct {
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description,omitempty"`
	MaxTurns          int            `yaml:"max_turns,omitempty"`
	CreditLimit       float64        `yaml:"credit_limit,omitempty"`
	StartingSituation string         `yaml:"starting_situation,omitempty"`
	Actors            []ActorConfig  `yaml:"actors"`
	Metrics           []MetricConfig `yaml:"metrics,omitempty"`
	Metadata          map[string]any `yaml:"metadata,omitempty"`

	// raw is the definition as a generic map, carried opaquely into
	// checkpoints so a resumed run can rebuild its surroundings.
	raw map[string]any
}

// Load reads and parses a scenario definition file.
func Load(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a YAML scenario definition and validates its structure.
func Parse(data []byte) (*ScenarioConfig, error) {
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid scenario yaml: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid scenario yaml: %w", err)
	}
	cfg.raw = raw

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural minimum: a name, at least one actor, and a
// name per actor.
func (c *ScenarioConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNoName
	}
	if len(c.Actors) == 0 {
		return ErrNoActors
	}
	for i, a := range c.Actors {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("actor %d has no name", i)
		}
	}
	return nil
}

// ScenarioID returns the stable identifier derived from the scenario name.
func (c *ScenarioConfig) ScenarioID() string { return slugify(c.Name) }

// ActorKey returns the opaque key for one actor, deriving it from the name
// when the definition omits it.
func (a ActorConfig) ActorKey() core.ActorKey {
	if a.Key != "" {
		return core.ActorKey(a.Key)
	}
	return core.ActorKey(slugify(a.Name))
}

// NewState builds the initial CREATED state at turn zero: the full actor
// roster with starting goals, the starting situation as the turn-zero world
// state, and the raw definition carried opaquely for checkpoints.
func (c *ScenarioConfig) NewState() core.ScenarioState {
	s := core.NewScenarioState(c.ScenarioID(), c.Name)
	s = s.WithWorldState(core.WorldState{Turn: 0, Content: c.StartingSituation})

	for _, a := range c.Actors {
		goals := make([]string, len(a.Goals))
		copy(goals, a.Goals)
		s = s.WithActor(core.ActorState{
			Key:                a.ActorKey(),
			Name:               a.Name,
			ShortName:          a.ShortName,
			Model:              a.Model,
			CurrentGoals:       goals,
			PrivateInformation: a.PrivateInformation,
		})
	}

	s.Config = c.raw
	for k, v := range c.Metadata {
		s = s.WithMetadata(k, v)
	}
	return s
}

// slugify turns a display name into a lowercase identifier: runs of
// non-alphanumerics collapse to single hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
