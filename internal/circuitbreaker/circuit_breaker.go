package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	// FailureRateThreshold opens the breaker once the failure rate over
	// the current window reaches it.
	FailureRateThreshold float64
	// MinThroughput is the minimum number of samples in the window
	// before the failure rate is considered meaningful.
	MinThroughput uint32
	// ProbeInterval is the number of trial calls allowed while half-open.
	ProbeInterval uint32
	// Cooldown is the period of the open state.
	Cooldown time.Duration
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Predefined errors
var (
	ErrOpenState       = errors.New("circuit breaker: open state")
	ErrTooManyRequests = errors.New("circuit breaker: too many requests")
)

// CircuitBreaker is a state machine that suppresses calls to a
// processor that keeps failing. Closed passes calls and records
// outcomes; Open rejects without invocation until the cooldown elapses;
// HalfOpen admits up to ProbeInterval trial calls, closing on enough
// successes and re-opening on any failure.
type CircuitBreaker struct {
	name                 string
	failureRateThreshold float64
	minThroughput        uint32
	probeInterval        uint32
	cooldown             time.Duration

	mutex      sync.RWMutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New creates a circuit breaker with the given configuration.
func New(name string, config Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                 name,
		failureRateThreshold: config.FailureRateThreshold,
		minThroughput:        config.MinThroughput,
		probeInterval:        config.ProbeInterval,
		cooldown:             config.Cooldown,
	}

	if cb.failureRateThreshold <= 0 {
		cb.failureRateThreshold = 0.5
	}
	if cb.minThroughput == 0 {
		cb.minThroughput = 5
	}
	if cb.probeInterval == 0 {
		cb.probeInterval = 1
	}
	if cb.cooldown == 0 {
		cb.cooldown = 60 * time.Second
	}

	cb.toNewGeneration(time.Now())

	return cb
}

// Execute runs the given request if the circuit breaker accepts it.
// It returns ErrOpenState without invoking the request when the breaker
// is open. The request's own error is passed through and recorded as a
// failure; a nil error is recorded as a success.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error) {
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := req(ctx)
	cb.afterRequest(generation, err == nil)
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	if state == StateOpen {
		return generation, ErrOpenState
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.probeInterval {
		return generation, ErrTooManyRequests
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.counts.ConsecutiveSuccesses >= cb.probeInterval {
			cb.setState(StateClosed, now)
		}
	}
}

func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if cb.readyToTrip() {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

// readyToTrip reports whether the failure rate over the current window
// reached the threshold with at least minThroughput samples. Callers
// hold the mutex.
func (cb *CircuitBreaker) readyToTrip() bool {
	if cb.counts.Requests < cb.minThroughput {
		return false
	}
	failureRate := float64(cb.counts.TotalFailures) / float64(cb.counts.Requests)
	return failureRate >= cb.failureRateThreshold
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	if cb.state == StateOpen && cb.expiry.Before(now) {
		cb.setState(StateHalfOpen, now)
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}

	cb.state = state

	switch state {
	case StateClosed:
		cb.toNewGeneration(now)
	case StateOpen:
		cb.generation++
		cb.counts = Counts{}
		cb.expiry = now.Add(cb.cooldown)
	case StateHalfOpen:
		cb.generation++
		cb.counts = Counts{}
		cb.expiry = time.Time{}
	}
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}
	cb.expiry = time.Time{}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

// Counts returns a copy of the current counts.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return cb.counts
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// ForceOpen trips the breaker immediately, starting the cooldown as if
// the failure threshold had just been reached.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateOpen, time.Now())
}
