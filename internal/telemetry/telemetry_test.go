package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	t.Setenv("ENABLE_TRACING", "true")
	t.Setenv("METRICS_INTERVAL", "not-a-number")
	t.Setenv("OTEL_EXPORT_TO_FILE", "")

	cfg := NewConfigFromEnv("zsxq-sandbox")

	assert.Equal(t, "zsxq-sandbox", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.SamplingRate)
	assert.True(t, cfg.EnableTracing)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, 10, cfg.MetricsInterval)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.False(t, cfg.ExportToFile)

	t.Setenv("OTEL_EXPORT_TO_FILE", "true")
	t.Setenv("OTEL_SERVICE_NAME", "custom")
	cfg = NewConfigFromEnv("zsxq-sandbox")
	assert.Equal(t, "custom", cfg.ServiceName)
	assert.True(t, cfg.ExportToFile)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Equal(t, "/tmp/otel/traces.json", cfg.TracesFilePath)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{ServiceName: "zsxq", ServiceVersion: "1.2.3", Environment: "test", LogLevel: "warn"}, &buf)

	l.Info("dropped")
	l.WithField("request_id", "req-1").Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "zsxq", entry["service.name"])
	assert.Equal(t, "1.2.3", entry["service.version"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Contains(t, entry, "@timestamp")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	l := NewLogger(&Config{LogLevel: "loud"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.json")
	hook, err := NewFileLogger(path)
	require.NoError(t, err)

	l, _ := test.NewNullLogger()
	l.AddHook(hook)
	l.WithError(errors.New("boom")).Error("failed")
	require.NoError(t, hook.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "failed", entry["message"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithContext(t *testing.T) {
	entry := WithContext(context.Background())
	assert.NotContains(t, entry.Data, "trace.id")

	provider := sdktrace.NewTracerProvider()
	defer provider.Shutdown(context.Background())
	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	entry = WithContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace.id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span.id"])
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest(context.Background(), "GET", "/v2/groups", 200, 5*time.Millisecond)
	m.RecordHTTPRequest(context.Background(), "GET", "/v2/groups", 200, 5*time.Millisecond)
	m.RecordSignatureFailure("bad_signature")
	m.RecordFault("drop")

	assert.Equal(t, float64(2), promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/v2/groups", "200")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.signatureFailures.WithLabelValues("bad_signature")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.faultsInjected.WithLabelValues("drop")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Millisecond)
		m.RecordSignatureFailure("x")
		m.RecordFault("x")
	})
}

func TestFileTracerExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	exporter, err := NewFileTracerExporter(path)
	require.NoError(t, err)

	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	ctx, parent := provider.Tracer("test").Start(context.Background(), "parent")
	_, child := provider.Tracer("test").Start(ctx, "child")
	child.RecordError(errors.New("boom"))
	child.End()
	parent.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var span FileSpan
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &span))
	assert.Equal(t, "child", span.Name)
	assert.Equal(t, parent.SpanContext().SpanID().String(), span.ParentID)
	require.Len(t, span.Events, 1)
	assert.Equal(t, "exception", span.Events[0].Name)
}

func TestFiberMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	logger, hook := test.NewNullLogger()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := tracer
	tracer = provider.Tracer("test")
	t.Cleanup(func() { tracer = previous })

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(FiberLoggingMiddleware(logger))
	app.Use(FiberMetricsMiddleware(m))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("x-request-id", "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, float64(1), promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/missing", "404")))

	series, err := promtest.GatherAndCount(reg, "zsxq_sandbox_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "earlier label values survive later requests")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].Data["request_id"])
	assert.Equal(t, "/ok", entries[0].Data["path"])
	assert.Equal(t, "GET", entries[0].Data["method"])
	assert.Contains(t, entries[0].Data, "trace.id")
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
	assert.Equal(t, "/missing", entries[1].Data["path"])

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /ok", spans[0].Name())
	assert.Equal(t, "GET /missing", spans[1].Name())
}

func TestPrometheusHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordFault("status")

	rec := httptest.NewRecorder()
	PrometheusHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zsxq_sandbox_faults_injected_total{fault="status"} 1`)
}
