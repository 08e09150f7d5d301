package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a short OpenTelemetry span.
//
// Each span carries:
//   - Name: event.Msg (e.g. "node_end", "route")
//   - Attributes: reviewloop.run_id, reviewloop.step, reviewloop.node_id and
//     every Meta field
//   - Status: Error when Meta["error"] is set
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(tp.Tracer("reviewloop"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as an immediately ended span.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("reviewloop.run_id", event.RunID),
		attribute.Int("reviewloop.step", event.Step),
		attribute.String("reviewloop.node_id", event.NodeID),
	)
	setMetaAttributes(span, event.Meta)

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
}

// Flush forces export of pending spans when the provider supports it.
//
// Pass the SDK tracer provider; providers without ForceFlush (such as the
// noop provider) are ignored.
func (o *OTelEmitter) Flush(ctx context.Context, provider trace.TracerProvider) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := provider.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// metaAttributeKeys maps well-known Meta keys onto namespaced attributes.
var metaAttributeKeys = map[string]string{
	"latency_ms": "reviewloop.node.latency_ms",
	"turn_count": "reviewloop.turn_count",
	"approved":   "reviewloop.feedback.approved",
	"issues":     "reviewloop.feedback.issues",
	"headline":   "reviewloop.proposal.headline",
	"outcome":    "reviewloop.run.outcome",
	"tokens_in":  "reviewloop.llm.tokens_in",
	"tokens_out": "reviewloop.llm.tokens_out",
	"model":      "reviewloop.llm.model",
}

func setMetaAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		if mapped, ok := metaAttributeKeys[key]; ok {
			attrKey = mapped
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case []string:
			span.SetAttributes(attribute.StringSlice(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, v.Milliseconds()))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
