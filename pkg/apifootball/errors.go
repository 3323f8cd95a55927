package apifootball

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies why an upstream request did not produce data.
type Kind int

const (
	// KindUnknown is never produced by the client; it is the zero value.
	KindUnknown Kind = iota
	// KindQuotaExceeded means the tier's daily or minute budget is spent. No network call was made.
	KindQuotaExceeded
	// KindCircuitOpen means the circuit breaker rejected the call. No network call was made.
	KindCircuitOpen
	// KindTransient covers network errors, timeouts, HTTP 408/429 and 5xx. Retried.
	KindTransient
	// KindUpstreamData means the provider answered 200 with a body we cannot use. Retried.
	KindUpstreamData
	// KindRejected covers the remaining 4xx statuses (bad key, bad params) and
	// errors the provider reports in a 200 body. Not retried.
	KindRejected
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTransient:
		return "transient"
	case KindUpstreamData:
		return "upstream_data"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by Client.
// Callers branch on Kind instead of matching messages.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int           // HTTP status, 0 when no response was received
	Attempt    int           // attempt number that produced the error, 0 for short-circuits
	RetryAfter time.Duration // hint for QuotaExceeded and CircuitOpen
	Reported   bool          // the provider answered 200 with an errors object
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("apifootball %s %s", e.Kind, e.Endpoint)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" attempt %d", e.Attempt)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindUpstreamData
}

// countsAgainstCircuit reports whether a finished call should count as a breaker
// failure. Short-circuits never reached the provider, and errors the provider
// reports about request parameters mean it is healthy.
func countsAgainstCircuit(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindQuotaExceeded, KindCircuitOpen:
			return false
		case KindRejected:
			return !e.Reported
		}
	}
	return true
}

// KindOf extracts the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
