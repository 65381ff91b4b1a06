package sdk

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/yiancode/zsxq-sdk/internal/testutil"
)

func newTracedClient(t *testing.T, server *testutil.MockServer) (*Client, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	client, _ := newTestClient(t, server, 0, nil)
	client.tracer = provider.Tracer(instrumentationName)
	return client, recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestTracing_SuccessfulCall(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.Respond("GET /v2/groups", http.StatusOK, testutil.Success(map[string]any{}))

	client, recorder := newTracedClient(t, server)
	_, err := client.Get(context.Background(), "/v2/groups", nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "zsxq GET /v2/groups", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "GET", attrs["http.method"].AsString())
	assert.Equal(t, "/v2/groups", attrs["http.target"].AsString())
	assert.Equal(t, server.LastRequest().Headers.Get("X-Request-Id"), attrs[AttrRequestID].AsString())
}

func TestTracing_FailedCall(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.Respond("POST /v2/groups/1/checkins/2", http.StatusOK, testutil.Failure(CodeCheckinClosed, "closed"))

	client, recorder := newTracedClient(t, server)
	_, err := client.Post(context.Background(), "/v2/groups/1/checkins/2", map[string]any{})
	require.ErrorIs(t, err, ErrCheckinClosed)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "checkin_closed", attrs[AttrErrorKind].AsString())
	assert.Equal(t, int64(CodeCheckinClosed), attrs[AttrErrorCode].AsInt64())

	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestTracing_PropagatesTraceContext(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	server := testutil.NewMockServer()
	defer server.Close()
	server.Respond("GET /v2/groups", http.StatusOK, testutil.Success(nil))

	client, recorder := newTracedClient(t, server)
	_, err := client.Get(context.Background(), "/v2/groups", nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	traceparent := server.LastRequest().Headers.Get("Traceparent")
	assert.Contains(t, traceparent, spans[0].SpanContext().TraceID().String())
}
