package core

// MetaHaltReason is the metadata key holding the descriptive reason recorded
// by WithHalted.
const MetaHaltReason = "halt_reason"

// WorldState is the shared situation description all actors observe. Turn
// records when the content was last rewritten.
type WorldState struct {
	Turn    int    `json:"turn"`
	Content string `json:"content"`
}

// ScenarioState is the immutable aggregate for one simulation run. All
// mutation is copy-on-write: every With* method returns a new value derived
// from the receiver, which is never modified. Because nothing mutates in
// place, a state handed to any number of concurrent event handlers is safe
// to read without locks.
//
// Contract:
//   - Turn never decreases within a run
//   - Communications, Costs and Metrics are append-only; only a checkpoint
//     branch may truncate them, at a turn boundary
//   - TotalCost is always derived from Costs, never cached
//   - Decisions holds the current turn's decisions keyed by actor
//   - Config is the opaque scenario definition, carried through checkpoints
//     untouched so a resumed run can rebuild its surroundings
type ScenarioState struct {
	ScenarioID     string                  `json:"scenario_id"`
	ScenarioName   string                  `json:"scenario_name"`
	RunID          string                  `json:"run_id"`
	Turn           int                     `json:"turn"`
	Status         Status                  `json:"status"`
	CurrentPhase   PhaseType               `json:"current_phase,omitempty"`
	WorldState     WorldState              `json:"world_state"`
	Actors         map[ActorKey]ActorState `json:"actors"`
	Decisions      map[ActorKey]Decision   `json:"decisions"`
	Communications []Communication         `json:"communications"`
	Costs          []CostRecord            `json:"costs"`
	Metrics        []MetricRecord          `json:"metrics"`
	Error          string                  `json:"error,omitempty"`
	Config         map[string]any          `json:"config,omitempty"`
	Metadata       map[string]any          `json:"metadata"`
}

// NewScenarioState creates a CREATED state at turn zero with a fresh run ID.
func NewScenarioState(scenarioID, scenarioName string) ScenarioState {
	return ScenarioState{
		ScenarioID:   scenarioID,
		ScenarioName: scenarioName,
		RunID:        NewID(),
		Status:       StatusCreated,
		Actors:       map[ActorKey]ActorState{},
		Decisions:    map[ActorKey]Decision{},
		Metadata:     map[string]any{},
	}
}

// WithStarted returns a copy transitioned to RUNNING.
func (s ScenarioState) WithStarted() ScenarioState {
	s.Status = StatusRunning
	return s
}

// WithTurn returns a copy at turn n. Callers are responsible for keeping the
// turn sequence non-decreasing; the orchestrator only ever advances it.
func (s ScenarioState) WithTurn(n int) ScenarioState {
	s.Turn = n
	return s
}

// WithPhase returns a copy whose CurrentPhase is p.
func (s ScenarioState) WithPhase(p PhaseType) ScenarioState {
	s.CurrentPhase = p
	return s
}

// WithCompleted returns a copy transitioned to COMPLETED.
func (s ScenarioState) WithCompleted() ScenarioState {
	s.Status = StatusCompleted
	return s
}

// WithHalted returns a copy transitioned to HALTED, recording the reason in
// metadata under MetaHaltReason.
func (s ScenarioState) WithHalted(reason string) ScenarioState {
	s.Status = StatusHalted
	s.Metadata = cloneAnyMap(s.Metadata)
	s.Metadata[MetaHaltReason] = reason
	return s
}

// WithPaused returns a copy transitioned to PAUSED.
func (s ScenarioState) WithPaused() ScenarioState {
	s.Status = StatusPaused
	return s
}

// WithError returns a copy transitioned to FAILED with the error message set.
func (s ScenarioState) WithError(msg string) ScenarioState {
	s.Status = StatusFailed
	s.Error = msg
	return s
}

// WithCost returns a copy with the record appended to Costs. The slice is
// copied so siblings derived from the same receiver never share growth.
func (s ScenarioState) WithCost(rec CostRecord) ScenarioState {
	costs := make([]CostRecord, len(s.Costs), len(s.Costs)+1)
	copy(costs, s.Costs)
	s.Costs = append(costs, rec)
	return s
}

// WithMetric returns a copy with the record appended to Metrics.
func (s ScenarioState) WithMetric(rec MetricRecord) ScenarioState {
	metrics := make([]MetricRecord, len(s.Metrics), len(s.Metrics)+1)
	copy(metrics, s.Metrics)
	s.Metrics = append(metrics, rec)
	return s
}

// WithCommunication returns a copy with the communication appended.
func (s ScenarioState) WithCommunication(c Communication) ScenarioState {
	comms := make([]Communication, len(s.Communications), len(s.Communications)+1)
	copy(comms, s.Communications)
	s.Communications = append(comms, c)
	return s
}

// WithDecision returns a copy with the actor's decision for this turn set.
func (s ScenarioState) WithDecision(d Decision) ScenarioState {
	decisions := make(map[ActorKey]Decision, len(s.Decisions)+1)
	for k, v := range s.Decisions {
		decisions[k] = v
	}
	decisions[d.Actor] = d
	s.Decisions = decisions
	return s
}

// WithDecisionsReset returns a copy with an empty decision map. The
// orchestrator calls it at each turn start so Decisions only ever holds the
// current turn's commitments.
func (s ScenarioState) WithDecisionsReset() ScenarioState {
	s.Decisions = map[ActorKey]Decision{}
	return s
}

// WithWorldState returns a copy with the world state replaced.
func (s ScenarioState) WithWorldState(ws WorldState) ScenarioState {
	s.WorldState = ws
	return s
}

// WithActor returns a copy with the actor added to (or replaced in) the roster.
func (s ScenarioState) WithActor(a ActorState) ScenarioState {
	actors := make(map[ActorKey]ActorState, len(s.Actors)+1)
	for k, v := range s.Actors {
		actors[k] = v
	}
	actors[a.Key] = a
	s.Actors = actors
	return s
}

// WithActorGoals returns a copy where the named actor carries the given
// goals. Unknown keys return the receiver unchanged.
func (s ScenarioState) WithActorGoals(key ActorKey, goals []string) ScenarioState {
	actor, ok := s.Actors[key]
	if !ok {
		return s
	}
	updated := actor.Clone()
	updated.CurrentGoals = make([]string, len(goals))
	copy(updated.CurrentGoals, goals)
	return s.WithActor(updated)
}

// WithMetadata returns a copy with the metadata key set.
func (s ScenarioState) WithMetadata(key string, value any) ScenarioState {
	s.Metadata = cloneAnyMap(s.Metadata)
	s.Metadata[key] = value
	return s
}

// TotalCost returns the sum over all cost records. It is recomputed on every
// call; there is no cached field to drift out of sync.
func (s ScenarioState) TotalCost() float64 {
	var total float64
	for _, c := range s.Costs {
		total += c.Cost
	}
	return total
}

// HaltReason returns the reason recorded by WithHalted, if any.
func (s ScenarioState) HaltReason() string {
	if r, ok := s.Metadata[MetaHaltReason].(string); ok {
		return r
	}
	return ""
}

// TurnCommunications returns the communications recorded for one turn,
// preserving their original order.
func (s ScenarioState) TurnCommunications(turn int) []Communication {
	var res []Communication
	for _, c := range s.Communications {
		if c.Turn == turn {
			res = append(res, c)
		}
	}
	return res
}

// Clone returns a deep copy of the state safe for independent mutation.
// With* transitions share unchanged collections between versions; Clone is
// for boundaries (stores, external callers) that must not observe sharing.
func (s ScenarioState) Clone() ScenarioState {
	clone := s
	clone.Actors = make(map[ActorKey]ActorState, len(s.Actors))
	for k, v := range s.Actors {
		clone.Actors[k] = v.Clone()
	}
	clone.Decisions = make(map[ActorKey]Decision, len(s.Decisions))
	for k, v := range s.Decisions {
		clone.Decisions[k] = v.Clone()
	}
	clone.Communications = make([]Communication, len(s.Communications))
	for i, c := range s.Communications {
		clone.Communications[i] = c.Clone()
	}
	clone.Costs = make([]CostRecord, len(s.Costs))
	copy(clone.Costs, s.Costs)
	clone.Metrics = make([]MetricRecord, len(s.Metrics))
	copy(clone.Metrics, s.Metrics)
	if s.Config != nil {
		clone.Config = cloneAnyMap(s.Config)
	}
	if s.Metadata != nil {
		clone.Metadata = cloneAnyMap(s.Metadata)
	}
	return clone
}

// cloneAnyMap shallow-copies a map so a derived state can add keys without
// the original observing them. Nil maps clone to empty maps.
func cloneAnyMap(m map[string]any) map[string]any {
	clone := make(map[string]any, len(m)+1)
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
