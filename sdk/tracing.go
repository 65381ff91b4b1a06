package sdk

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/yiancode/zsxq-sdk/sdk"

// Span attribute keys specific to the zsxq API.
const (
	AttrRequestID = attribute.Key("zsxq.request_id")
	AttrErrorKind = attribute.Key("zsxq.error.kind")
	AttrErrorCode = attribute.Key("zsxq.error.code")
)

// startCallSpan opens the client span covering every attempt of one call.
func startCallSpan(ctx context.Context, tracer trace.Tracer, req *Request) (context.Context, trace.Span) {
	method := strings.ToUpper(req.Method)
	return tracer.Start(ctx, "zsxq "+method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPTargetKey.String(req.Path),
		),
	)
}

// endCallSpan records the outcome of the call and ends the span.
func endCallSpan(span trace.Span, requestID string, err error) {
	defer span.End()
	if requestID != "" {
		span.SetAttributes(AttrRequestID.String(requestID))
	}
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(
		AttrErrorKind.String(KindOf(err).String()),
		AttrErrorCode.Int(CodeOf(err)),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
