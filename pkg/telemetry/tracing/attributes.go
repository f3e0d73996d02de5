package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys in the saturn.* namespace.
const (
	AttrRequestID    = "saturn.request_id"
	AttrRoute        = "saturn.route"
	AttrLogicalModel = "saturn.logical_model"
	AttrProvider     = "saturn.provider"
	AttrModel        = "saturn.model"
	AttrStream       = "saturn.stream"
	AttrAttempt      = "saturn.attempt"
	AttrStopReason   = "saturn.stop_reason"
	AttrTokensInput  = "saturn.tokens.input"
	AttrTokensOutput = "saturn.tokens.output"
	AttrErrorType    = "saturn.error.type"
)

// RouteAttributes describes a routing decision on the request span.
func RouteAttributes(route, logicalModel string, stream bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRoute, route),
		attribute.String(AttrLogicalModel, logicalModel),
		attribute.Bool(AttrStream, stream),
	}
}

// AttemptAttributes describes one provider attempt on its span.
func AttemptAttributes(provider, model string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
		attribute.Int(AttrAttempt, attempt),
	}
}

// SetUsage records token usage on a span.
func SetUsage(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.Int(AttrTokensInput, inputTokens),
		attribute.Int(AttrTokensOutput, outputTokens),
	)
}

// SetStopReason records the response's stop reason on a span.
func SetStopReason(span trace.Span, stopReason string) {
	if stopReason != "" {
		span.SetAttributes(attribute.String(AttrStopReason, stopReason))
	}
}

// SetError marks a span failed, with the error kind from the taxonomy.
func SetError(span trace.Span, err error, errType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, errType))
	span.SetStatus(codes.Error, err.Error())
}
