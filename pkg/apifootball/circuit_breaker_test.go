package apifootball

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResetTimeout = 30 * time.Millisecond

var errUpstreamDown = &Error{Kind: KindTransient, StatusCode: 503}

// trip reports n failed calls through the breaker.
func trip(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		done, err := cb.Allow()
		require.NoError(t, err, "call %d", i+1)
		done(errUpstreamDown)
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)
	assert.Equal(t, DefaultFailureThreshold, cb.threshold)
	assert.Equal(t, DefaultResetTimeout, cb.resetTimeout)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensExactlyAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, DefaultResetTimeout)

	trip(t, cb, DefaultFailureThreshold-1)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, DefaultFailureThreshold-1, cb.Snapshot().Failures)

	trip(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Allow()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCircuitOpen))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Greater(t, apiErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, apiErr.RetryAfter, DefaultResetTimeout)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, DefaultResetTimeout)

	trip(t, cb, DefaultFailureThreshold-1)
	done, err := cb.Allow()
	require.NoError(t, err)
	done(nil)
	assert.Equal(t, 0, cb.Snapshot().Failures)

	trip(t, cb, DefaultFailureThreshold-1)
	assert.Equal(t, StateClosed, cb.State(), "failures must be consecutive")
}

func TestCircuitBreaker_OutcomesThatDoNotCount(t *testing.T) {
	tests := []struct {
		name    string
		outcome error
		counts  bool
	}{
		{name: "success", outcome: nil, counts: false},
		{name: "provider reported parameter error", outcome: &Error{Kind: KindRejected, Reported: true}, counts: false},
		{name: "quota exceeded", outcome: &Error{Kind: KindQuotaExceeded}, counts: false},
		{name: "http rejection", outcome: &Error{Kind: KindRejected, StatusCode: 401}, counts: true},
		{name: "transient", outcome: errUpstreamDown, counts: true},
		{name: "malformed body", outcome: &Error{Kind: KindUpstreamData}, counts: true},
		{name: "foreign error", outcome: errors.New("boom"), counts: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(DefaultFailureThreshold, DefaultResetTimeout)
			done, err := cb.Allow()
			require.NoError(t, err)
			done(tt.outcome)

			snap := cb.Snapshot()
			if tt.counts {
				assert.Equal(t, 1, snap.Failures)
				assert.False(t, snap.LastFailureAt.IsZero())
			} else {
				assert.Equal(t, 0, snap.Failures)
				assert.True(t, snap.LastFailureAt.IsZero())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, testResetTimeout)
	trip(t, cb, DefaultFailureThreshold)

	_, err := cb.Allow()
	require.True(t, IsKind(err, KindCircuitOpen), "still inside the reset timeout")

	time.Sleep(2 * testResetTimeout)
	done, err := cb.Allow()
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Allow()
	assert.True(t, IsKind(err, KindCircuitOpen), "second caller must wait for the trial")

	done(nil)
	assert.Equal(t, StateClosed, cb.State())
	_, err = cb.Allow()
	assert.NoError(t, err)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, testResetTimeout)
	trip(t, cb, DefaultFailureThreshold)
	firstOpen := cb.Snapshot().OpenedAt

	time.Sleep(2 * testResetTimeout)
	done, err := cb.Allow()
	require.NoError(t, err)
	done(errUpstreamDown)

	snap := cb.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.True(t, snap.OpenedAt.After(firstOpen), "timeout restarts from the failed trial")

	_, err = cb.Allow()
	assert.True(t, IsKind(err, KindCircuitOpen))
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, testResetTimeout)

	var (
		mu          sync.Mutex
		transitions []string
	)
	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	trip(t, cb, DefaultFailureThreshold)
	time.Sleep(2 * testResetTimeout)
	done, err := cb.Allow()
	require.NoError(t, err)
	done(nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_ConcurrentFailures(t *testing.T) {
	cb := NewCircuitBreaker(DefaultFailureThreshold, DefaultResetTimeout)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if done, err := cb.Allow(); err == nil {
				done(errUpstreamDown)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, StateOpen, cb.Snapshot().State)
	_, err := cb.Allow()
	assert.True(t, IsKind(err, KindCircuitOpen))
}
