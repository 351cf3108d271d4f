// Package breaker provides a per-subsystem circuit breaker: a threshold of
// 5 failures within a 5-minute window opens the breaker and forces
// fallback paths until a 30-second quiet period elapses.
package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Subsystem names one independently-tripped breaker.
type Subsystem string

const (
	DataManager Subsystem = "DataManager"
	Renderer    Subsystem = "Renderer"
	Network     Subsystem = "Network"
)

const (
	failureThreshold = 5
	failureWindow    = 5 * time.Minute
	quietPeriod      = 30 * time.Second
)

// Registry holds one gobreaker.CircuitBreaker per subsystem, created lazily.
type Registry struct {
	mu       sync.Mutex
	breakers map[Subsystem]*gobreaker.CircuitBreaker
}

// NewRegistry creates an empty per-subsystem breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[Subsystem]*gobreaker.CircuitBreaker)}
}

func (r *Registry) get(s Subsystem) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[s]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        string(s),
		MaxRequests: 1,
		Interval:    failureWindow,
		Timeout:     quietPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold || counts.TotalFailures >= failureThreshold
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	r.breakers[s] = b
	return b
}

// Allow reports whether a call to the given subsystem may proceed right
// now, without itself recording an attempt. Useful for a fast fallback
// check before doing other work.
func (r *Registry) Allow(s Subsystem) bool {
	return r.get(s).State() != gobreaker.StateOpen
}

// Do executes fn through the named subsystem's breaker, recording success or
// failure and returning gobreaker.ErrOpenState if the breaker is currently
// open, forcing the caller onto its fallback path.
func (r *Registry) Do(s Subsystem, fn func() error) error {
	_, err := r.get(s).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports the current state of a subsystem's breaker for status
// reporting / UI indicators.
func (r *Registry) State(s Subsystem) gobreaker.State {
	return r.get(s).State()
}
