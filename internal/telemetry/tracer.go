package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	tracerOnce sync.Once
	tracer     trace.Tracer
)

// FileTracerExporter exports spans as JSON lines for local collectors.
type FileTracerExporter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// FileSpan is the JSON shape of one exported span
type FileSpan struct {
	TraceID    string                 `json:"trace_id"`
	SpanID     string                 `json:"span_id"`
	ParentID   string                 `json:"parent_id,omitempty"`
	Name       string                 `json:"name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Attributes map[string]interface{} `json:"attributes"`
	Status     string                 `json:"status"`
	Events     []SpanEvent            `json:"events,omitempty"`
}

// SpanEvent represents an event in a span
type SpanEvent struct {
	Name       string                 `json:"name"`
	Timestamp  time.Time              `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// InitTracing installs the global tracer provider and propagator. With
// tracing disabled a noop provider is installed.
func InitTracing(cfg *Config) error {
	var err error
	tracerOnce.Do(func() {
		if !cfg.EnableTracing {
			otel.SetTracerProvider(noop.NewTracerProvider())
			tracer = otel.Tracer(cfg.ServiceName)
			return
		}

		ctx := context.Background()

		res, resErr := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(cfg.ServiceName),
				semconv.ServiceVersionKey.String(cfg.ServiceVersion),
				semconv.DeploymentEnvironmentKey.String(cfg.Environment),
			),
		)
		if resErr != nil {
			err = fmt.Errorf("failed to create resource: %w", resErr)
			return
		}

		var exporter sdktrace.SpanExporter
		if cfg.ExportToFile && cfg.TracesFilePath != "" {
			exporter, err = NewFileTracerExporter(cfg.TracesFilePath)
		} else {
			client := otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			)
			exporter, err = otlptrace.New(ctx, client)
		}
		if err != nil {
			err = fmt.Errorf("failed to create trace exporter: %w", err)
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		tracer = otel.Tracer(cfg.ServiceName)
	})

	return err
}

// NewFileTracerExporter creates a new file tracer exporter
func NewFileTracerExporter(filePath string) (*FileTracerExporter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &FileTracerExporter{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// ExportSpans implements the SpanExporter interface
func (f *FileTracerExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, span := range spans {
		if err := f.encoder.Encode(toFileSpan(span)); err != nil {
			return err
		}
	}
	return nil
}

func toFileSpan(span sdktrace.ReadOnlySpan) FileSpan {
	fileSpan := FileSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  span.StartTime(),
		EndTime:    span.EndTime(),
		Status:     span.Status().Code.String(),
		Attributes: make(map[string]interface{}),
	}

	if span.Parent().IsValid() {
		fileSpan.ParentID = span.Parent().SpanID().String()
	}

	for _, attr := range span.Attributes() {
		fileSpan.Attributes[string(attr.Key)] = attr.Value.AsInterface()
	}

	for _, event := range span.Events() {
		spanEvent := SpanEvent{
			Name:      event.Name,
			Timestamp: event.Time,
		}
		if len(event.Attributes) > 0 {
			spanEvent.Attributes = make(map[string]interface{})
			for _, attr := range event.Attributes {
				spanEvent.Attributes[string(attr.Key)] = attr.Value.AsInterface()
			}
		}
		fileSpan.Events = append(fileSpan.Events, spanEvent)
	}
	return fileSpan
}

// Shutdown implements the SpanExporter interface
func (f *FileTracerExporter) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// Tracer returns the global tracer instance
func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer("zsxq")
	}
	return tracer
}

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SetErrorStatus sets the status of the span in ctx to Error
func SetErrorStatus(ctx context.Context, description string) {
	trace.SpanFromContext(ctx).SetStatus(codes.Error, description)
}

// SetOKStatus sets the status of the span in ctx to OK
func SetOKStatus(ctx context.Context) {
	trace.SpanFromContext(ctx).SetStatus(codes.Ok, "")
}

// RecordError records an error on the span in ctx
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	trace.SpanFromContext(ctx).RecordError(err, opts...)
}

// CloseTracing shuts down the tracer provider
func CloseTracing(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
