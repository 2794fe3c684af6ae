package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/tamreport/internal/common"
)

// BreakerState is the state of a circuit breaker
type BreakerState string

const (
	StateClosed   BreakerState = "Closed"
	StateOpen     BreakerState = "Open"
	StateHalfOpen BreakerState = "HalfOpen"
)

// BreakerSettings configures a CircuitBreaker
type BreakerSettings struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultBreakerSettings is 5 failures, 300s recovery, 3 half-open probes
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		RecoveryTimeout:  300 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// BreakerSettingsFromConfig builds settings from the [circuit_breaker] section
func BreakerSettingsFromConfig(cfg common.CircuitBreakerConfig) BreakerSettings {
	s := DefaultBreakerSettings()
	if cfg.FailureThreshold > 0 {
		s.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.RecoveryTimeoutSeconds > 0 {
		s.RecoveryTimeout = cfg.GetRecoveryTimeout()
	}
	if cfg.HalfOpenMaxCalls > 0 {
		s.HalfOpenMaxCalls = cfg.HalfOpenMaxCalls
	}
	return s
}

// CircuitBreaker guards calls to one authority host
type CircuitBreaker struct {
	name     string
	settings BreakerSettings

	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, settings BreakerSettings) *CircuitBreaker {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &CircuitBreaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// State returns the current state, applying the Open -> HalfOpen transition
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

func (b *CircuitBreaker) advance() {
	if b.state == StateOpen && b.settings.Now().Sub(b.openedAt) >= b.settings.RecoveryTimeout {
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
	}
}

// Allow reserves a call. It returns a CircuitOpen error when the breaker is
// open or the half-open probe budget is spent.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	switch b.state {
	case StateOpen:
		return b.openError()
	case StateHalfOpen:
		if b.halfOpenCalls >= b.settings.HalfOpenMaxCalls {
			return b.openError()
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *CircuitBreaker) openError() error {
	return &common.Error{
		Kind:      common.KindCircuitOpen,
		Component: "circuit_breaker",
		Err:       fmt.Errorf("circuit open for %s", b.name),
	}
}

// Success records a successful call
func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
}

// Failure records a failed call
func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.settings.Now()
	b.halfOpenCalls = 0
}

// Execute runs fn under the breaker. isFailure decides which errors count
// against the breaker; other errors are treated as healthy responses.
func Execute[T any](b *CircuitBreaker, isFailure func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil && isFailure(err) {
		b.Failure()
		return v, err
	}
	b.Success()
	return v, err
}

// Registry holds one breaker per authority host
type Registry struct {
	settings BreakerSettings

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry sharing settings across hosts
func NewRegistry(settings BreakerSettings) *Registry {
	return &Registry{
		settings: settings,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for host, creating it on first use
func (r *Registry) For(host string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[host]
	if !ok {
		b = NewCircuitBreaker(host, r.settings)
		r.breakers[host] = b
	}
	return b
}
