package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentbridge"

// Metrics holds all AgentBridge metric instruments.
type Metrics struct {
	SessionsCreated      metric.Int64Counter
	SessionsLoaded       metric.Int64Counter
	PromptsStarted       metric.Int64Counter
	PromptsCancelled     metric.Int64Counter
	ToolCalls            metric.Int64Counter
	PermissionsRequested metric.Int64Counter
	PermissionsApproved  metric.Int64Counter
	PermissionsDenied    metric.Int64Counter
	PromptDuration       metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsCreated, err = meter.Int64Counter("agentbridge.sessions.created",
		metric.WithDescription("Number of sessions created"))
	if err != nil {
		return nil, err
	}

	m.SessionsLoaded, err = meter.Int64Counter("agentbridge.sessions.loaded",
		metric.WithDescription("Number of sessions loaded from the store"))
	if err != nil {
		return nil, err
	}

	m.PromptsStarted, err = meter.Int64Counter("agentbridge.prompts.started",
		metric.WithDescription("Number of prompt turns started"))
	if err != nil {
		return nil, err
	}

	m.PromptsCancelled, err = meter.Int64Counter("agentbridge.prompts.cancelled",
		metric.WithDescription("Number of prompt turns cancelled"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentbridge.toolcalls",
		metric.WithDescription("Number of tool calls observed"))
	if err != nil {
		return nil, err
	}

	m.PermissionsRequested, err = meter.Int64Counter("agentbridge.permissions.requested",
		metric.WithDescription("Number of permission requests sent to clients"))
	if err != nil {
		return nil, err
	}

	m.PermissionsApproved, err = meter.Int64Counter("agentbridge.permissions.approved",
		metric.WithDescription("Number of permission requests approved"))
	if err != nil {
		return nil, err
	}

	m.PermissionsDenied, err = meter.Int64Counter("agentbridge.permissions.denied",
		metric.WithDescription("Number of permission requests denied"))
	if err != nil {
		return nil, err
	}

	m.PromptDuration, err = meter.Float64Histogram("agentbridge.prompt.duration_seconds",
		metric.WithDescription("Prompt turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
