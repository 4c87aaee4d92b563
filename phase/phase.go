package phase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
	"github.com/Itangalo/scenario-lab-sub001/model"
)

// recentWindow bounds how many prior communications a prompt quotes.
const recentWindow = 12

// Options configures the model-backed phases.
type Options struct {
	// Template overrides the phase's default prompt template.
	Template string

	// Limiter caps model calls per run across all phases sharing it.
	// Nil means unlimited.
	Limiter *core.ModelLimiter

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// WithTemplate overrides the prompt template.
func WithTemplate(tmpl string) func(o *Options) {
	return func(o *Options) { o.Template = tmpl }
}

// WithLimiter shares a model-call limiter across phases.
func WithLimiter(l *core.ModelLimiter) func(o *Options) {
	return func(o *Options) { o.Limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func applyOptions(defaultTemplate string, optFns []func(o *Options)) Options {
	opts := Options{
		Template: defaultTemplate,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)
	return opts
}

// sortedActorKeys returns the roster keys in stable order so phases iterate
// actors deterministically.
func sortedActorKeys(state core.ScenarioState) []core.ActorKey {
	keys := make([]core.ActorKey, 0, len(state.Actors))
	for k := range state.Actors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// costRecord builds the cost entry for one completed model call, pricing
// the usage under the model's name.
func costRecord(state core.ScenarioState, actor core.ActorKey, m model.Model, usage model.TokenUsage) core.CostRecord {
	name := m.Info().Name
	return core.CostRecord{
		Timestamp:    time.Now().UTC(),
		Turn:         state.Turn,
		Actor:        actor,
		Phase:        state.CurrentPhase,
		Model:        name,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         model.CostOf(name, usage),
	}
}

// checkLimiter counts one model call against the shared limiter.
func checkLimiter(l *core.ModelLimiter) error {
	if l == nil {
		return nil
	}
	if err := l.Increment(); err != nil {
		return fmt.Errorf("model call budget: %w", err)
	}
	return nil
}

// recentCommunications renders the last few messages for prompt context.
func recentCommunications(state core.ScenarioState) string {
	comms := state.Communications
	if len(comms) > recentWindow {
		comms = comms[len(comms)-recentWindow:]
	}
	if len(comms) == 0 {
		return "(none yet)"
	}

	var b strings.Builder
	for _, c := range comms {
		sender := string(c.Sender)
		if actor, ok := state.Actors[c.Sender]; ok && actor.Name != "" {
			sender = actor.Name
		}
		fmt.Fprintf(&b, "[turn %d] %s: %s\n", c.Turn, sender, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
