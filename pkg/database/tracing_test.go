package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func TestTraceQuery_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "IssueCommon", "UPDATE promos SET used_count = used_count + 1")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.IssueCommon", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	attrs := make(map[string]string)
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "IssueCommon", attrs["db.operation"])
}

func TestTraceQuery_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetPromo", "SELECT 1")
	end(errors.New("connection reset"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection reset", spans[0].Status.Description)
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	SetSlowQueryLogging(time.Nanosecond, logger)
	_, end := TraceQuery(context.Background(), "ListFeed", "SELECT 1")
	time.Sleep(time.Millisecond)
	end(nil)
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "ListFeed")

	buf.Reset()
	SetSlowQueryLogging(time.Hour, logger)
	_, end = TraceQuery(context.Background(), "ListFeed", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())

	SetSlowQueryLogging(0, logger)
	_, end = TraceQuery(context.Background(), "ListFeed", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}
