package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic-convention attributes specific to the audit log domain.
var (
	AttrEventID   = attribute.Key("talos.event.id")
	AttrSurfaceID = attribute.Key("talos.event.surface_id")
	AttrOutcome   = attribute.Key("talos.event.outcome")

	AttrMerkleRoot   = attribute.Key("talos.merkle.root")
	AttrMerkleHeight = attribute.Key("talos.merkle.height")
	AttrMerkleIndex  = attribute.Key("talos.merkle.index")

	AttrListLimit      = attribute.Key("talos.list.limit")
	AttrListResultSize = attribute.Key("talos.list.result_size")

	AttrSubscriberCount = attribute.Key("talos.broadcast.subscriber_count")
)

// IngestOperation creates attributes for one Ingest call.
func IngestOperation(eventID, surfaceID, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventID.String(eventID),
		AttrSurfaceID.String(surfaceID),
		AttrOutcome.String(outcome),
	}
}

// ProofOperation creates attributes for a Proof lookup, including the
// resulting root and the leaf's position once computed.
func ProofOperation(eventID, root string, height, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventID.String(eventID),
		AttrMerkleRoot.String(root),
		AttrMerkleHeight.Int(height),
		AttrMerkleIndex.Int(index),
	}
}

// ListOperation creates attributes for a List call.
func ListOperation(limit, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrListLimit.Int(limit),
		AttrListResultSize.Int(resultSize),
	}
}

// BroadcastOperation creates attributes for a Publish fan-out.
func BroadcastOperation(subscriberCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSubscriberCount.Int(subscriberCount),
	}
}

// SpanFromContext extracts the current span from ctx.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the span carried by ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the span carried by ctx, if any.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
