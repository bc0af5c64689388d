package antifraud

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promocode/pkg/httpclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	hc := httpclient.New(httpclient.Config{
		Timeout:         time.Second,
		MaxRetries:      1,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    time.Millisecond,
		MaxConnsPerHost: 4,
	})
	cb := httpclient.NewCircuitBreakerClient(hc, httpclient.CircuitBreakerConfig{
		Name:         "antifraud-test-" + t.Name(),
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}, newTestLogger())
	// Bare host:port, as configured in ANTIFRAUD_ADDRESS.
	return NewClient(cb, strings.TrimPrefix(server.URL, "http://"), newTestLogger()), &calls
}

func TestClient_Check_Allow(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/validate", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["user_email"])
		assert.Equal(t, "promo-1", body["promo_id"])

		_, _ = w.Write([]byte(`{"ok": true, "cache_until": "2025-05-20T10:00:00.123"}`))
	})

	d, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.NoError(t, err)
	assert.True(t, d.OK)
	require.NotNil(t, d.CacheUntil)
	assert.Equal(t, time.Date(2025, 5, 20, 10, 0, 0, 123_000_000, time.UTC), *d.CacheUntil)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestClient_Check_DenyWithoutCacheUntil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "cache_until": null}`))
	})

	d, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.NoError(t, err)
	assert.False(t, d.OK)
	assert.Nil(t, d.CacheUntil)
}

func TestClient_Check_ZonedCacheUntil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "cache_until": "2025-05-20T12:00:00+02:00"}`))
	})

	d, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.NoError(t, err)
	require.NotNil(t, d.CacheUntil)
	assert.Equal(t, time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC), *d.CacheUntil)
}

func TestClient_Check_MalformedCacheUntilKeepsVerdict(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "cache_until": "tomorrow"}`))
	})

	d, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.NoError(t, err)
	assert.True(t, d.OK)
	assert.Nil(t, d.CacheUntil)
}

func TestClient_Check_ServerErrorIsNotRetried(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestClient_Check_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode antifraud response")
}

func TestClient_Check_MissingOK(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cache_until": null}`))
	})

	_, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.Error(t, err)
}

func TestClient_Check_ClientErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD","message":"bad email"}}`))
	})

	_, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad email")
}

func TestClient_Check_TransportFailureRetriedOnce(t *testing.T) {
	var attempts int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	d, err := client.Check(context.Background(), "ada@example.com", "promo-1")
	require.NoError(t, err)
	assert.True(t, d.OK)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestNewClient_KeepsScheme(t *testing.T) {
	c := NewClient(nil, "https://fraud.internal/", newTestLogger())
	assert.Equal(t, "https://fraud.internal", c.baseURL)

	c = NewClient(nil, "localhost:9090", newTestLogger())
	assert.Equal(t, "http://localhost:9090", c.baseURL)
}
