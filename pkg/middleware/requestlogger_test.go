package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/promocode/pkg/logger"
)

// logThroughRequestLogger runs one request through RequestLogger and returns
// the single line the handler logged via the context logger.
func logThroughRequestLogger(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := RequestLogger(logger.NewWithWriter("promocode", "info", &buf))(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			logger.FromContext(r.Context()).Info("handler line")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/feed", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRequestLogger_BindsRequestID(t *testing.T) {
	out := logThroughRequestLogger(t, logger.WithRequestID(context.Background(), "req-42"))

	assert.Equal(t, "handler line", out["msg"])
	assert.Equal(t, "promocode", out["service"])
	assert.Equal(t, "req-42", out["request_id"])
	assert.NotContains(t, out, "subject_id")
	assert.NotContains(t, out, "trace_id")
}

func TestRequestLogger_BindsSubject(t *testing.T) {
	out := logThroughRequestLogger(t, logger.WithSubject(context.Background(), "c-1", "company"))

	assert.Equal(t, "c-1", out["subject_id"])
	assert.Equal(t, "company", out["subject_type"])
}

func TestRequestLogger_BindsTraceIDs(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	out := logThroughRequestLogger(t, ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}
