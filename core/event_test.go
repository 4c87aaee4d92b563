package core

import (
	"testing"
	"time"
)

func TestEvent_Constructor(t *testing.T) {
	e := NewEvent(EventTurnStarted, map[string]any{"turn": 3})
	if e.Type != EventTurnStarted || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}
	if e.Timestamp.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", e.Timestamp.Location())
	}

	bare := NewEvent(EventScenarioStarted, nil)
	if bare.Data == nil {
		t.Fatal("nil data should be replaced with an empty map")
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Error("Expected unique IDs")
	}
}

func TestEventType_IsValid(t *testing.T) {
	valid := []EventType{
		EventScenarioStarted, EventScenarioCompleted, EventScenarioHalted,
		EventScenarioFailed, EventScenarioPaused, EventScenarioResumed,
		EventTurnStarted, EventTurnCompleted, EventTurnFailed,
		EventPhaseStarted, EventPhaseCompleted, EventPhaseFailed,
		EventCreditWarning, EventCreditExceeded, EventAny,
	}
	for _, et := range valid {
		if !et.IsValid() {
			t.Errorf("expected %q to be valid", et)
		}
	}
	if EventType("turn_exploded").IsValid() {
		t.Error("unknown type should not be valid")
	}
}

func TestEvent_DataAccessors(t *testing.T) {
	e := NewEvent(EventTurnCompleted, map[string]any{
		"turn":       2,
		"total_cost": 1.25,
		"status":     "running",
		"decoded":    float64(7), // JSON round-trips numbers as float64
	})

	if v, ok := e.Int("turn"); !ok || v != 2 {
		t.Errorf("Int(turn) = %d, %v", v, ok)
	}
	if v, ok := e.Int("decoded"); !ok || v != 7 {
		t.Errorf("Int(decoded) = %d, %v", v, ok)
	}
	if v, ok := e.Float("total_cost"); !ok || v != 1.25 {
		t.Errorf("Float(total_cost) = %f, %v", v, ok)
	}
	if v, ok := e.Float("turn"); !ok || v != 2 {
		t.Errorf("Float(turn) = %f, %v", v, ok)
	}
	if v, ok := e.Str("status"); !ok || v != "running" {
		t.Errorf("Str(status) = %q, %v", v, ok)
	}
	if _, ok := e.Int("missing"); ok {
		t.Error("missing key should not resolve")
	}
	if _, ok := e.Str("turn"); ok {
		t.Error("non-string value should not resolve as string")
	}
}

func TestEvent_UnixSeconds(t *testing.T) {
	e := NewEvent(EventScenarioStarted, nil)
	secs := e.UnixSeconds()
	if secs <= 0 {
		t.Fatalf("expected positive unix seconds, got %f", secs)
	}
	drift := float64(time.Now().Unix()) - secs
	if drift > 5 || drift < -5 {
		t.Errorf("timestamp drifted too far from now: %f", drift)
	}
}
