package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const meterName = "github.com/yiancode/zsxq-sdk/internal/telemetry"

var (
	metricsOnce   sync.Once
	metrics       *Metrics
	meterProvider *sdkmetric.MeterProvider
)

// Metrics holds the sandbox server metrics. A nil *Metrics records nothing.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	signatureFailures   *prometheus.CounterVec
	faultsInjected      *prometheus.CounterVec
	serviceUp           prometheus.Gauge

	otelRequests metric.Int64Counter
}

// NewMetrics registers the sandbox metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zsxq_sandbox_requests_total",
			Help: "Total number of requests served by the sandbox",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zsxq_sandbox_request_duration_seconds",
			Help:    "Duration of sandbox requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		}, []string{"method", "route"}),

		signatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zsxq_sandbox_signature_failures_total",
			Help: "Total number of requests rejected by signature verification",
		}, []string{"reason"}),

		faultsInjected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zsxq_sandbox_faults_injected_total",
			Help: "Total number of scripted faults (status, delay, drop) served",
		}, []string{"fault"}),

		serviceUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zsxq_sandbox_up",
			Help: "Whether the sandbox is up (1) or down (0)",
		}),
	}

	counter, err := otel.Meter(meterName).Int64Counter("zsxq.sandbox.requests",
		metric.WithDescription("Requests served by the sandbox"))
	if err == nil {
		m.otelRequests = counter
	}
	return m
}

// InitMetrics registers the global metrics on the default Prometheus
// registerer and, when enabled, starts the OTLP metric exporter.
func InitMetrics(cfg *Config) error {
	var err error
	metricsOnce.Do(func() {
		metrics = NewMetrics(prometheus.DefaultRegisterer)

		if cfg.EnableMetrics && !cfg.ExportToFile {
			err = initOTELMetrics(cfg)
		}

		metrics.serviceUp.Set(1)
	})
	return err
}

// M returns the global metrics, nil before InitMetrics.
func M() *Metrics {
	return metrics
}

func initOTELMetrics(cfg *Config) error {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricsInterval)*time.Second),
			),
		),
	)

	otel.SetMeterProvider(meterProvider)
	return nil
}

// CloseMetrics flushes and stops the OTLP metric exporter, if any.
func CloseMetrics(ctx context.Context) error {
	if meterProvider != nil {
		return meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	if m.otelRequests != nil {
		m.otelRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
			attribute.Int("status", status),
		))
	}
}

// RecordSignatureFailure records a request rejected by signature checks
func (m *Metrics) RecordSignatureFailure(reason string) {
	if m == nil {
		return
	}
	m.signatureFailures.WithLabelValues(reason).Inc()
}

// RecordFault records a scripted fault
func (m *Metrics) RecordFault(fault string) {
	if m == nil {
		return
	}
	m.faultsInjected.WithLabelValues(fault).Inc()
}
