package errors

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Guard while a breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails calls to a model backend fast after repeated errors.
// After the cool-down a single probe call is let through; its outcome
// closes or re-opens the breaker. Caller cancellation does not count as a
// backend failure.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	onChange     func(name string, from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures open the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.maxFailures = n
		}
	}
}

// WithResetTimeout sets the cool-down before a probe is allowed.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChange registers a callback run on every transition. It is
// called with the breaker lock released.
func WithStateChange(fn func(name string, from, to State)) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onChange = fn
	}
}

// NewCircuitBreaker creates a closed breaker. Defaults: 5 failures, 30s.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the position, showing an expired open breaker as half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooledDown() {
		return StateHalfOpen
	}
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.resetTimeout
}

// acquire decides whether a call may run. Must not hold mu.
func (cb *CircuitBreaker) acquire() (bool, func()) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		if !cb.cooledDown() {
			return false, nil
		}
		cb.probing = true
		return true, cb.transition(StateHalfOpen)
	case StateHalfOpen:
		if cb.probing {
			return false, nil
		}
		cb.probing = true
		return true, nil
	default:
		return true, nil
	}
}

// record applies a call outcome and returns the pending notification.
func (cb *CircuitBreaker) record(err error) func() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	wasProbe := cb.probing
	cb.probing = false

	if err == nil {
		cb.failures = 0
		return cb.transition(StateClosed)
	}
	if errors.Is(err, context.Canceled) {
		if wasProbe {
			return cb.transition(StateOpen)
		}
		return nil
	}

	cb.failures++
	if wasProbe || cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
		return cb.transition(StateOpen)
	}
	return nil
}

// transition sets the state under mu and returns the callback to run
// after unlocking, or nil.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if from == to || cb.onChange == nil {
		return nil
	}
	fn, name := cb.onChange, cb.name
	return func() { fn(name, from, to) }
}

// Guard runs fn through cb. While the breaker is open it returns the zero
// value and ErrCircuitOpen without calling fn.
func Guard[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	ok, notify := cb.acquire()
	if notify != nil {
		notify()
	}
	if !ok {
		return zero, ErrCircuitOpen
	}

	result, err := fn()
	if notify := cb.record(err); notify != nil {
		notify()
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}
