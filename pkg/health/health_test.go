package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Timestamp.IsZero())
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down("connection refused"))

	code, resp := serve(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code, "liveness ignores dependencies")
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		critical map[string]Checker
		optional map[string]Checker
		code     int
		status   Status
	}{
		{name: "no checks", code: http.StatusOK, status: StatusUp},
		{
			name:     "all up",
			critical: map[string]Checker{"postgres": up, "redis": up},
			optional: map[string]Checker{"kafka": up},
			code:     http.StatusOK, status: StatusUp,
		},
		{
			name:     "optional down degrades",
			critical: map[string]Checker{"postgres": up},
			optional: map[string]Checker{"kafka": down("broker unreachable")},
			code:     http.StatusOK, status: StatusDegraded,
		},
		{
			name:     "critical down",
			critical: map[string]Checker{"postgres": up, "redis": down("dial tcp: refused")},
			code:     http.StatusServiceUnavailable, status: StatusDown,
		},
		{
			name:     "critical wins over degraded",
			critical: map[string]Checker{"postgres": down("db down")},
			optional: map[string]Checker{"kafka": down("kafka down")},
			code:     http.StatusServiceUnavailable, status: StatusDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, c := range tt.critical {
				h.RegisterCritical(name, c)
			}
			for name, c := range tt.optional {
				h.RegisterNonCritical(name, c)
			}

			code, resp := serve(t, h.ReadinessHandler())
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			require.Len(t, resp.Checks, len(tt.critical)+len(tt.optional))
			for name := range tt.critical {
				assert.True(t, resp.Checks[name].Critical, name)
			}
			for name := range tt.optional {
				assert.False(t, resp.Checks[name].Critical, name)
			}
		})
	}
}

func TestReadiness_ReportsCheckError(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", down("connection refused"))

	_, resp := serve(t, h.ReadinessHandler())
	assert.Equal(t, CheckResult{Status: StatusDown, Critical: true, Error: "connection refused"}, resp.Checks["redis"])
}

func TestReadiness_ReRegisterReplaces(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down("fail"))
	h.RegisterNonCritical("postgres", up)

	code, resp := serve(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, CheckResult{Status: StatusUp}, resp.Checks["postgres"])
}

func TestReadiness_ChecksRunConcurrently(t *testing.T) {
	h := NewHandler()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	slow := func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.RegisterCritical("postgres", slow)
	h.RegisterNonCritical("kafka", slow)

	go func() {
		<-started
		<-started
		close(release)
	}()

	code, _ := serve(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
}
