package clients

import (
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets requests through.
	StateClosed State = iota

	// StateOpen blocks requests until the open timeout passes.
	StateOpen

	// StateHalfOpen lets a limited number of probe requests through.
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

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// HalfOpenLimit is both the number of concurrent probes allowed and the
	// number of consecutive probe successes that close the circuit.
	HalfOpenLimit int
}

// Counts is a snapshot of the breaker's counters.
type Counts struct {
	State     State
	Failures  int
	Successes int
	InFlight  int
}

// CircuitBreaker guards the remote quote source so a dead endpoint fails fast
// instead of stalling every sync cycle on retries.
//
// Transitions: closed to open after MaxFailures consecutive failures, open to
// half-open once Timeout has passed, half-open to closed after HalfOpenLimit
// successes, and half-open back to open on any failure.
type CircuitBreaker struct {
	mu          sync.Mutex
	counts      Counts
	lastFailure time.Time
	cfg         CircuitBreakerConfig

	onStateChange func(from, to State)

	// now is overridable in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. Non-positive limits
// are raised to 1.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}

	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{
		counts: Counts{State: StateClosed},
		cfg:    cfg,
		now:    time.Now,
	}
}

// OnStateChange registers a callback invoked after every transition, outside
// the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onStateChange = fn
}

// Allow reports whether a request may proceed. An open breaker whose timeout
// has passed moves to half-open and admits the caller as the first probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var (
		allowed bool
		notify  func()
	)

	switch cb.counts.State {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.Timeout {
			notify = cb.transitionTo(StateHalfOpen)
			cb.counts.InFlight = 1
			allowed = true
		}
	case StateHalfOpen:
		if cb.counts.InFlight < cb.cfg.HalfOpenLimit {
			cb.counts.InFlight++
			allowed = true
		}
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}

	return allowed
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var notify func()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures = 0
	case StateHalfOpen:
		cb.counts.InFlight = max(cb.counts.InFlight-1, 0)
		cb.counts.Successes++

		if cb.counts.Successes >= cb.cfg.HalfOpenLimit {
			notify = cb.transitionTo(StateClosed)
		}
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var notify func()

	cb.lastFailure = cb.now()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures++
		if cb.counts.Failures >= cb.cfg.MaxFailures {
			notify = cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.counts.InFlight = max(cb.counts.InFlight-1, 0)
		notify = cb.transitionTo(StateOpen)
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts.State
}

// Snapshot returns a copy of the counters.
func (cb *CircuitBreaker) Snapshot() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// transitionTo must be called with the lock held. It returns the callback
// invocation to run once the lock is released, or nil.
func (cb *CircuitBreaker) transitionTo(next State) func() {
	prev := cb.counts.State
	if prev == next {
		return nil
	}

	cb.counts = Counts{State: next}

	if fn := cb.onStateChange; fn != nil {
		return func() { fn(prev, next) }
	}

	return nil
}
