package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// upstream answers with whatever status is stored in it and counts hits.
type upstream struct {
	status atomic.Int32
	hits   atomic.Int32
	srv    *httptest.Server
}

func newUpstream(t *testing.T, status int) *upstream {
	t.Helper()
	u := &upstream{}
	u.status.Store(int32(status))
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		u.hits.Add(1)
		w.WriteHeader(int(u.status.Load()))
		_, _ = w.Write([]byte(`{"verdict":"n/a"}`))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

// breaker trips after three calls at 50% failures and lets a trial call through after 50ms.
func breaker(name string) *CircuitBreakerClient {
	return NewCircuitBreakerClient(New(testConfig(1)), CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}, testLogger())
}

func call(ctx context.Context, cb *CircuitBreakerClient, u *upstream) error {
	resp, err := cb.PostJSON(ctx, u.srv.URL, map[string]string{"user_id": "u-1"})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func TestCircuitBreaker_PassesSuccessfulAnswers(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	cb := breaker("cb-ok")

	resp, err := cb.PostJSON(context.Background(), u.srv.URL, nil)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.JSONEq(t, `{"verdict":"n/a"}`, string(body))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_ServerErrorsTripAndShortCircuit(t *testing.T) {
	u := newUpstream(t, http.StatusBadGateway)
	cb := breaker("cb-trip")

	for i := 0; i < 3; i++ {
		err := call(context.Background(), cb, u)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr), "attempt %d: %v", i, err)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "verdict")
	}
	assert.EqualValues(t, 3, u.hits.Load(), "answered 5xx is never retried")
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	assert.ErrorIs(t, call(context.Background(), cb, u), ErrCircuitOpen)
	assert.EqualValues(t, 3, u.hits.Load(), "open breaker must not call out")
}

func TestCircuitBreaker_OutcomesThatKeepItClosed(t *testing.T) {
	t.Run("client errors", func(t *testing.T) {
		u := newUpstream(t, http.StatusUnprocessableEntity)
		cb := breaker("cb-4xx")
		for i := 0; i < 5; i++ {
			require.NoError(t, call(context.Background(), cb, u))
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("caller cancellation", func(t *testing.T) {
		u := newUpstream(t, http.StatusOK)
		cb := breaker("cb-cancel")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for i := 0; i < 5; i++ {
			require.ErrorIs(t, call(ctx, cb, u), context.Canceled)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	u := newUpstream(t, http.StatusInternalServerError)
	cb := breaker("cb-recover")
	for i := 0; i < 3; i++ {
		_ = call(context.Background(), cb, u)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	u.status.Store(http.StatusOK)
	require.Eventually(t, func() bool { return cb.State() == gobreaker.StateHalfOpen }, time.Second, 10*time.Millisecond)

	require.NoError(t, call(context.Background(), cb, u))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestStateValue(t *testing.T) {
	for state, want := range map[gobreaker.State]float64{
		gobreaker.StateClosed:   0,
		gobreaker.StateHalfOpen: 1,
		gobreaker.StateOpen:     2,
	} {
		assert.Equal(t, want, stateValue(state), state.String())
	}
}
