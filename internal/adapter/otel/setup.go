// Package otel provides metric instruments, span helpers, and HTTP
// instrumentation for AgentBridge. Tracer/meter providers come from the
// global otel registry; exporter wiring is deferred to deployment.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Deployments that need
// exported traces install an OTLP provider here.
func InitTracer(serviceName string, log *slog.Logger) ShutdownFunc {
	log.Debug("otel tracer using global provider", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
