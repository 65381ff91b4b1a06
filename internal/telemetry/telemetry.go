package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Init initializes all telemetry components
func Init(cfg *Config) error {
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := InitMetrics(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	L().WithFields(logrus.Fields{
		"service":      cfg.ServiceName,
		"version":      cfg.ServiceVersion,
		"environment":  cfg.Environment,
		"exportToFile": cfg.ExportToFile,
	}).Debug("Telemetry initialized")

	return nil
}

// Shutdown flushes exporters and closes the file logger
func Shutdown(ctx context.Context) error {
	if err := CloseTracing(ctx); err != nil {
		L().WithError(err).Error("Failed to close tracing")
	}

	if err := CloseMetrics(ctx); err != nil {
		L().WithError(err).Error("Failed to close metrics")
	}

	if err := CloseLogger(); err != nil {
		L().WithError(err).Error("Failed to close logger")
	}

	return nil
}

// PrometheusHandler returns an HTTP handler serving gatherer, or the
// default gatherer when nil
func PrometheusHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// FiberMetricsMiddleware returns a Fiber middleware that opens a server
// span per request and records it on m
func FiberMetricsMiddleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		// Fiber reuses the request buffers unless the app is Immutable.
		method := utils.CopyString(c.Method())
		path := utils.CopyString(c.Path())

		ctx, span := StartSpan(c.UserContext(), method+" "+path,
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		m.RecordHTTPRequest(ctx, method, path, status, time.Since(start))

		span.SetAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPTargetKey.String(path),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		if err != nil {
			RecordError(ctx, err)
			SetErrorStatus(ctx, err.Error())
		} else if status >= 400 {
			SetErrorStatus(ctx, fmt.Sprintf("HTTP %d", status))
		} else {
			SetOKStatus(ctx)
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware(logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := logrus.Fields{
			"method":      utils.CopyString(c.Method()),
			"path":        utils.CopyString(c.Path()),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          utils.CopyString(c.IP()),
			"user_agent":  utils.CopyString(c.Get(fiber.HeaderUserAgent)),
		}
		if id := c.Get("x-request-id"); id != "" {
			fields["request_id"] = utils.CopyString(id)
		}
		span := trace.SpanFromContext(c.UserContext())
		if span.SpanContext().IsValid() {
			fields["trace.id"] = span.SpanContext().TraceID().String()
		}
		entry := logger.WithFields(fields)

		if err != nil {
			entry.WithError(err).Error("Request failed")
		} else if c.Response().StatusCode() >= 400 {
			entry.Warn("Request completed with error status")
		} else {
			entry.Info("Request completed")
		}

		return err
	}
}
