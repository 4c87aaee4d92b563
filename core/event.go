package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies one of the lifecycle events published by the engine.
// The set is closed: emitters and subscribers share these constants instead
// of free-form strings, so a typo fails review rather than silently matching
// nothing. EventAny is the wildcard subscription key and is never emitted.
type EventType string

const (
	// EventScenarioStarted is emitted once when execution begins on a fresh run.
	EventScenarioStarted EventType = "scenario_started"
	// EventScenarioCompleted is emitted when the configured turn count finishes normally.
	EventScenarioCompleted EventType = "scenario_completed"
	// EventScenarioHalted is emitted on a recoverable stop (budget or operator request).
	EventScenarioHalted EventType = "scenario_halted"
	// EventScenarioFailed is emitted when a phase error terminates the run.
	EventScenarioFailed EventType = "scenario_failed"
	// EventScenarioPaused is emitted when a pause request takes effect at a turn boundary.
	EventScenarioPaused EventType = "scenario_paused"
	// EventScenarioResumed is emitted when execution restarts from a loaded or branched state.
	EventScenarioResumed EventType = "scenario_resumed"

	// EventTurnStarted is emitted before the first phase of each turn.
	EventTurnStarted EventType = "turn_started"
	// EventTurnCompleted is emitted after the last phase that ran in a turn,
	// including turns cut short by the credit breaker.
	EventTurnCompleted EventType = "turn_completed"
	// EventTurnFailed is emitted when a phase error aborts the turn.
	EventTurnFailed EventType = "turn_failed"

	// EventPhaseStarted is emitted before each phase service executes.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseCompleted is emitted after a phase service returns successfully.
	EventPhaseCompleted EventType = "phase_completed"
	// EventPhaseFailed is emitted when a phase service returns an error.
	EventPhaseFailed EventType = "phase_failed"

	// EventCreditWarning is emitted once per crossing of the warning threshold.
	EventCreditWarning EventType = "credit_limit_warning"
	// EventCreditExceeded is emitted once when cumulative cost reaches the limit.
	EventCreditExceeded EventType = "credit_limit_exceeded"

	// EventAny subscribes a handler to every event type.
	EventAny EventType = "*"
)

// String returns the wire representation of the event type.
func (t EventType) String() string { return string(t) }

// IsValid reports whether t is one of the reserved lifecycle types or the wildcard.
func (t EventType) IsValid() bool {
	switch t {
	case EventScenarioStarted, EventScenarioCompleted, EventScenarioHalted,
		EventScenarioFailed, EventScenarioPaused, EventScenarioResumed,
		EventTurnStarted, EventTurnCompleted, EventTurnFailed,
		EventPhaseStarted, EventPhaseCompleted, EventPhaseFailed,
		EventCreditWarning, EventCreditExceeded, EventAny:
		return true
	default:
		return false
	}
}

// Event is the unit of communication between the engine and its subscribers.
// After emission it is treated as immutable. It captures:
//   - Classification (Type, one of the closed EventType set)
//   - Payload (Data, shallow key/value map owned by the emitter)
//   - Provenance (Source, CorrelationID)
//   - High precision UTC timestamp
//
// Events are ephemeral: they live in the bus's optional history ring and are
// never persisted into a checkpoint. Data values should be plain values or
// types safe for concurrent reads, since handlers run in parallel.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Data          map[string]any `json:"data"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewEvent creates an event of the given type carrying data. A nil data map
// is replaced with an empty one so consumers can index without nil checks.
func NewEvent(eventType EventType, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        NewID(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier for events, runs and communications.
//
// This function creates a UUID-based unique identifier that can be used for
// tracking and correlation throughout the engine.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

// Int returns the data value under key coerced to int. The second return is
// false when the key is absent or the value is not numeric. JSON round-trips
// deliver numbers as float64, so both forms are accepted.
func (e Event) Int(key string) (int, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Float returns the data value under key coerced to float64.
func (e Event) Float(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Str returns the data value under key when it is a string.
func (e Event) Str(key string) (string, bool) {
	v, ok := e.Data[key].(string)
	return v, ok
}
