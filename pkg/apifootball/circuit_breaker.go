package apifootball

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until the reset timeout has elapsed.
	StateOpen
	// StateHalfOpen lets exactly one trial call through.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens the circuit.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout is how long the circuit stays open before a trial call.
	DefaultResetTimeout = 30 * time.Second

	breakerName = "api-football"
)

// CircuitSnapshot is a point-in-time copy of the breaker fields.
type CircuitSnapshot struct {
	State         State     `json:"-"`
	StateName     string    `json:"state"`
	Failures      int       `json:"consecutive_failures"`
	OpenedAt      time.Time `json:"opened_at,omitempty"`
	LastFailureAt time.Time `json:"last_failure_at,omitempty"`
}

// CircuitBreaker guards the upstream provider.
//
//	Closed --(failures >= threshold)--> Open --(reset timeout elapsed)--> HalfOpen
//	HalfOpen --(success)--> Closed, HalfOpen --(failure)--> Open
//
// The state machine is gobreaker's two-step breaker with a single half-open
// request; this type adds the outcome classification and the snapshot fields.
type CircuitBreaker struct {
	breaker      *gobreaker.TwoStepCircuitBreaker[struct{}]
	threshold    int
	resetTimeout time.Duration

	mu            sync.Mutex
	onChange      func(from, to State)
	openedAt      time.Time
	lastFailureAt time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments fall back to the defaults.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}

	cb := &CircuitBreaker{threshold: threshold, resetTimeout: resetTimeout}
	cb.breaker = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			cb.changed(fromGobreaker(from), fromGobreaker(to))
		},
	})
	return cb
}

// OnStateChange registers a callback invoked on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Allow gates one call. It returns a CircuitOpen *Error when the call must not be made.
// Otherwise the caller must report the call's outcome exactly once through done;
// outcomes that do not count against the provider are recorded as successes.
func (cb *CircuitBreaker) Allow() (done func(outcome error), err error) {
	report, err := cb.breaker.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Kind: KindCircuitOpen, Message: "circuit breaker trial call in flight"}
		}
		return nil, &Error{
			Kind:       KindCircuitOpen,
			RetryAfter: cb.retryAfter(),
			Message:    "circuit breaker is open",
		}
	}

	return func(outcome error) {
		failed := countsAgainstCircuit(outcome)
		if failed {
			cb.mu.Lock()
			cb.lastFailureAt = time.Now()
			cb.mu.Unlock()
		}
		report(!failed)
	}, nil
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.breaker.State())
}

// Snapshot copies the breaker fields.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	state := cb.State()
	counts := cb.breaker.Counts()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitSnapshot{
		State:         state,
		StateName:     state.String(),
		Failures:      int(counts.ConsecutiveFailures),
		OpenedAt:      cb.openedAt,
		LastFailureAt: cb.lastFailureAt,
	}
}

func (cb *CircuitBreaker) retryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.openedAt.IsZero() {
		return cb.resetTimeout
	}
	return max(cb.resetTimeout-time.Since(cb.openedAt), 0)
}

// changed runs under the gobreaker lock, so it must not call back into cb.breaker.
func (cb *CircuitBreaker) changed(from, to State) {
	cb.mu.Lock()
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	fn := cb.onChange
	cb.mu.Unlock()

	if fn != nil {
		fn(from, to)
	}
}
