package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "meetings"

const (
	AttrMeetingID = "meeting_id"
	AttrProvider  = "provider"
	AttrMimeType  = "mime_type"
	AttrBytes     = "bytes"
	AttrOperation = "operation"
)

const (
	SpanTranscribe = "meetings.stt.transcribe"
	SpanGenerate   = "meetings.llm.generate"
)

// Tracer wraps the global OpenTelemetry tracer. Without a configured
// provider every span is a no-op.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

func (t *Tracer) StartTranscribeSpan(ctx context.Context, provider, mimeType string, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanTranscribe,
		trace.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrMimeType, mimeType),
			attribute.Int(AttrBytes, size),
		),
	)
}

func (t *Tracer) StartGenerateSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanGenerate,
		trace.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrOperation, operation),
		),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
