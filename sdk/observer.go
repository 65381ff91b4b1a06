package sdk

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer provides hooks for monitoring SDK operations.
// Observer methods are called synchronously on the request path and
// should be fast and non-blocking.
//
// Example implementation:
//
//	type SlowCallObserver struct{}
//
//	func (SlowCallObserver) OnRequestEnd(method, path string, d time.Duration, err error) {
//	    if d > time.Second {
//	        log.Printf("slow zsxq call %s %s took %v", method, path, d)
//	    }
//	}
//	// remaining methods are no-ops
type Observer interface {
	// OnRequestStart is called once per logical call, before the first attempt.
	//
	// Parameters:
	//   - method: HTTP method (GET, POST, PUT, DELETE)
	//   - path: Request path (e.g., "/v2/groups")
	OnRequestStart(method, path string)

	// OnRequestEnd is called once per logical call with the final outcome,
	// after retries and envelope interpretation.
	OnRequestEnd(method, path string, duration time.Duration, err error)

	// OnRetryAttempt is called each time the retry loop decides to try again.
	//
	// Parameters:
	//   - attempt: The attempt that just failed (1, 2, 3...)
	//   - delay: Backoff before the next attempt
	//   - err: The transport error that triggered the retry
	OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error)

	// OnConnectionCreated is called when the shared HTTP client is built,
	// on first use and again after every Close.
	OnConnectionCreated(baseURL string)
}

// NoopObserver is a no-op implementation of Observer that does nothing.
// This is the default observer used when none is configured.
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {}

// OnRetryAttempt does nothing
func (n *NoopObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
}

// OnConnectionCreated does nothing
func (n *NoopObserver) OnConnectionCreated(baseURL string) {}

// MetricsCollector is a simple in-memory metrics implementation.
// It is primarily intended for debugging and tests; PrometheusObserver
// exports the same signals for production.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithToken(token).WithObserver(metrics))
//	// Use client...
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Total requests: %v\n", snapshot["requests"])
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount map[string]int64
	latencies    map[string][]time.Duration
	errorCount   map[string]int64
	errorKinds   map[string]int64
	retryCount   map[string]int64
	connections  int64
}

// NewMetricsCollector creates a new metrics collector for tracking SDK operations.
// The collector is thread-safe and can be used concurrently.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount: make(map[string]int64),
		latencies:    make(map[string][]time.Duration),
		errorCount:   make(map[string]int64),
		errorKinds:   make(map[string]int64),
		retryCount:   make(map[string]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.requestCount[key]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
		m.errorKinds[KindOf(err).String()]++
	}
}

// OnRetryAttempt increments retry count
func (m *MetricsCollector) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.retryCount[key]++
}

// OnConnectionCreated counts connection (re)creations
func (m *MetricsCollector) OnConnectionCreated(baseURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections++
}

// GetMetrics returns a snapshot of current metrics.
// The returned map is a copy and safe to read without locks.
//
// The metrics include:
//   - "requests": Map of endpoint to request count
//   - "latencies": Map of endpoint to latency measurements
//   - "errors": Map of endpoint to error count
//   - "error_kinds": Map of ErrorKind name to count
//   - "retries": Map of endpoint to retry count
//   - "connections_created": Number of HTTP clients built
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	return map[string]interface{}{
		"requests":            copyCounts(m.requestCount),
		"latencies":           latenciesCopy,
		"errors":              copyCounts(m.errorCount),
		"error_kinds":         copyCounts(m.errorKinds),
		"retries":             copyCounts(m.retryCount),
		"connections_created": m.connections,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order.
// If an observer panics, it's caught to prevent affecting other observers.
//
// Example:
//
//	composite := sdk.NewCompositeObserver(
//	    sdk.NewLogObserver(logger),
//	    sdk.NewMetricsCollector(),
//	)
//
//	config := sdk.DefaultConfig().
//	    WithObserver(composite)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

func (c *CompositeObserver) each(fn func(Observer)) {
	for _, obs := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Observer panicked, ignore
				}
			}()
			fn(obs)
		}()
	}
}

// OnRequestStart notifies all observers of request start.
func (c *CompositeObserver) OnRequestStart(method, path string) {
	c.each(func(o Observer) { o.OnRequestStart(method, path) })
}

// OnRequestEnd notifies all observers of request completion.
func (c *CompositeObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	c.each(func(o Observer) { o.OnRequestEnd(method, path, duration, err) })
}

// OnRetryAttempt notifies all observers
func (c *CompositeObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	c.each(func(o Observer) { o.OnRetryAttempt(method, path, attempt, delay, err) })
}

// OnConnectionCreated notifies all observers
func (c *CompositeObserver) OnConnectionCreated(baseURL string) {
	c.each(func(o Observer) { o.OnConnectionCreated(baseURL) })
}

// LogObserver writes one structured entry per logical call and per retry.
// Successful calls log at Info, failures at Error with kind, code and
// request id fields.
type LogObserver struct {
	logger logrus.FieldLogger
}

// NewLogObserver returns a LogObserver writing to logger, or to the
// logrus standard logger when logger is nil.
func NewLogObserver(logger logrus.FieldLogger) *LogObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnRequestStart(method, path string) {
	o.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("zsxq request started")
}

func (o *LogObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	entry := o.logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithFields(logrus.Fields{
			"error_kind": KindOf(err).String(),
			"error_code": CodeOf(err),
			"request_id": RequestIDOf(err),
		}).WithError(err).Error("zsxq request failed")
		return
	}
	entry.Info("zsxq request completed")
}

func (o *LogObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	o.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"attempt":    attempt,
		"delay":      delay.String(),
		"request_id": RequestIDOf(err),
	}).WithError(err).Warn("zsxq request retrying")
}

func (o *LogObserver) OnConnectionCreated(baseURL string) {
	o.logger.WithField("base_url", baseURL).Debug("zsxq connection created")
}
