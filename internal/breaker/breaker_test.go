package breaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

func TestOpensAfterThreshold(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")

	for i := 0; i < failureThreshold; i++ {
		if err := r.Do(Network, func() error { return boom }); err == nil {
			t.Fatalf("expected failure to propagate at attempt %d", i)
		}
	}

	if r.State(Network) != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open after %d failures, got %v", failureThreshold, r.State(Network))
	}
	if r.Allow(Network) {
		t.Fatalf("Allow() should be false once breaker is open")
	}
}

func TestIndependentSubsystems(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	for i := 0; i < failureThreshold; i++ {
		r.Do(DataManager, func() error { return boom })
	}
	if !r.Allow(Renderer) {
		t.Fatalf("Renderer breaker should be unaffected by DataManager failures")
	}
}
