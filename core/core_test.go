package core

import (
	"testing"

	"github.com/Itangalo/scenario-lab-sub001/logging"
)

func TestModelLimiter(t *testing.T) {
	unlimited := NewModelLimiter(0)
	for i := 0; i < 100; i++ {
		if err := unlimited.Increment(); err != nil {
			t.Fatalf("unlimited limiter errored: %v", err)
		}
	}
	if unlimited.Remaining() != -1 {
		t.Errorf("unlimited Remaining = %d, want -1", unlimited.Remaining())
	}

	ml := NewModelLimiter(2)
	if err := ml.Increment(); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if err := ml.Increment(); err != nil {
		t.Fatalf("second call should pass: %v", err)
	}
	if ml.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", ml.Remaining())
	}
	if err := ml.Increment(); err == nil {
		t.Fatal("third call should exceed the limit")
	}

	ml.Reset()
	if ml.Count() != 0 {
		t.Errorf("Count after Reset = %d", ml.Count())
	}
	if err := ml.Increment(); err != nil {
		t.Fatalf("call after Reset should pass: %v", err)
	}
}

func TestEnsureLogger(t *testing.T) {
	if _, ok := EnsureLogger(nil).(logging.NoOpLogger); !ok {
		t.Fatal("nil should become NoOpLogger")
	}
	l := logging.NewDefaultSlogLogger()
	if EnsureLogger(l) != l {
		t.Fatal("non-nil logger should pass through")
	}
}
