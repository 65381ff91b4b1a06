package sdk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver exports SDK activity as Prometheus metrics.
// It is safe for concurrent use.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	config := sdk.DefaultConfig().
//	    WithToken(token).
//	    WithObserver(sdk.NewPrometheusObserver(reg))
//
// Paths are used as the endpoint label verbatim, so callers with ids in
// their paths should template them first (see BuildPath).
type PrometheusObserver struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   *prometheus.GaugeVec
	retriesTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	connectionsCreated prometheus.Counter
}

// NewPrometheusObserver registers the SDK metrics on registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func NewPrometheusObserver(registerer prometheus.Registerer) *PrometheusObserver {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &PrometheusObserver{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zsxq_requests_total",
				Help: "Total number of logical zsxq API calls",
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zsxq_request_duration_seconds",
				Help:    "Duration of logical zsxq API calls including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zsxq_requests_in_flight",
				Help: "Number of zsxq API calls currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zsxq_retries_total",
				Help: "Total number of retries after transport failures",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zsxq_errors_total",
				Help: "Total number of failed calls by error kind",
			},
			[]string{"kind", "category"},
		),
		connectionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zsxq_connections_created_total",
				Help: "Total number of HTTP clients created by the connection manager",
			},
		),
	}
}

// OnRequestStart increments the in-flight gauge
func (p *PrometheusObserver) OnRequestStart(method, path string) {
	p.requestsInFlight.WithLabelValues(method, path).Inc()
}

// OnRequestEnd records the outcome and duration of a call
func (p *PrometheusObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	p.requestsInFlight.WithLabelValues(method, path).Dec()
	p.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
		kind := KindOf(err)
		p.errorsTotal.WithLabelValues(kind.String(), kind.Category().String()).Inc()
	}
	p.requestsTotal.WithLabelValues(method, path, outcome).Inc()
}

// OnRetryAttempt increments the retry counter
func (p *PrometheusObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	p.retriesTotal.WithLabelValues(method, path).Inc()
}

// OnConnectionCreated increments the connection counter
func (p *PrometheusObserver) OnConnectionCreated(baseURL string) {
	p.connectionsCreated.Inc()
}
