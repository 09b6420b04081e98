package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests.
	CircuitOpen
	// CircuitHalfOpen allows a limited number of probe requests.
	CircuitHalfOpen
)

// String returns the string representation of CircuitState.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before probing again.
	ResetTimeout time.Duration
	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        60 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// ErrCircuitOpen is returned (wrapped) when the circuit rejects a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a client after repeated failures.
// Only failures a retry could fix count against the circuit: a rejected
// token or a bad model id is the caller's problem, not the provider's.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu                  sync.RWMutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	halfOpenRequests    int
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  CircuitClosed,
	}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) openError(state CircuitState) *AppError {
	return &AppError{
		Code:       ErrAIProviderFailed,
		Message:    fmt.Sprintf("%s temporarily unavailable (circuit breaker %s)", cb.name, state),
		Cause:      ErrCircuitOpen,
		Suggestion: "Please wait a moment and try again",
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) < cb.config.ResetTimeout {
			return cb.openError(CircuitOpen)
		}
		cb.transition(CircuitHalfOpen)
		cb.halfOpenRequests = 1
	case CircuitHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return cb.openError(CircuitHalfOpen)
		}
		cb.halfOpenRequests++
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !IsRetryable(err) {
		cb.consecutiveFailures = 0
		if cb.state == CircuitHalfOpen {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.lastFailureTime = time.Now()
	cb.consecutiveFailures++
	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(state CircuitState) {
	cb.state = state
	cb.halfOpenRequests = 0
	LogCircuitBreaker(cb.name, state, cb.consecutiveFailures)
}

// Name returns the name the breaker was created with.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.halfOpenRequests = 0
}

// ConsecutiveFailures returns the current number of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFailures
}

// CircuitBreakers hands out one breaker per key, created on first use.
type CircuitBreakers struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakers creates an empty set sharing config.
func NewCircuitBreakers(config CircuitBreakerConfig) *CircuitBreakers {
	return &CircuitBreakers{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for key.
func (s *CircuitBreakers) Get(key string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(key, s.config)
		s.breakers[key] = cb
	}
	return cb
}

// Forget drops the breaker for key, e.g. after its client was removed.
func (s *CircuitBreakers) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, key)
}
