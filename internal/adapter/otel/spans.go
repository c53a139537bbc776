package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentbridge"

// StartPromptSpan starts a span for one prompt turn.
func StartPromptSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "prompt",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
	)
}

// StartPermissionSpan starts a span covering a blocked confirmation.
func StartPermissionSpan(ctx context.Context, sessionID, requestID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "permission",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("permission.request_id", requestID),
		),
	)
}
