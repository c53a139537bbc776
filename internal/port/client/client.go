// Package client defines the port for the client transport: the editor or
// chat surface consuming session notifications and answering permission
// requests. The orchestrator is the caller of RequestPermission, never the
// callee.
package client

import (
	"context"

	"github.com/Strob0t/AgentBridge/internal/domain/notification"
	"github.com/Strob0t/AgentBridge/internal/domain/risk"
)

// Outcome is the client's answer to a permission request.
type Outcome string

const (
	// OutcomeApproveOnce approves the pending actions for this check only.
	OutcomeApproveOnce Outcome = "approve_once"
	// OutcomeRejectOnce rejects the pending actions, optionally with a reason.
	OutcomeRejectOnce Outcome = "reject_once"
	// OutcomeNeverConfirm adopts NeverConfirm for the rest of the session.
	OutcomeNeverConfirm Outcome = "never_confirm"
	// OutcomeConfirmRisky adopts ConfirmRisky(Threshold) for the session.
	OutcomeConfirmRisky Outcome = "confirm_risky"
	// OutcomeCancelled defers the decision; the run halts without erroring.
	OutcomeCancelled Outcome = "cancelled"
)

// ActionDescription is one pending action rendered for human review.
type ActionDescription struct {
	CallID      string     `json:"call_id"`
	Tool        string     `json:"tool"`
	Description string     `json:"description"`
	Risk        risk.Level `json:"risk"`
}

// PermissionRequest asks the client to decide on a blocked action set.
type PermissionRequest struct {
	RequestID string              `json:"request_id"`
	SessionID string              `json:"session_id"`
	Title     string              `json:"title"`
	Actions   []ActionDescription `json:"actions"`
}

// PermissionResponse is the client's decision. A response is consumed
// exactly once and never replayed.
type PermissionResponse struct {
	Outcome   Outcome    `json:"outcome"`
	Reason    string     `json:"reason,omitempty"`
	Threshold risk.Level `json:"threshold,omitempty"`
}

// Notifier streams session notifications to the client.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n notification.Notification) error
}

// Client is the full client transport surface consumed by the orchestrator.
// RequestPermission blocks until the client answers, the deadline passes, or
// ctx is cancelled; any error is treated as fail-closed by the caller.
type Client interface {
	Notifier
	RequestPermission(ctx context.Context, req PermissionRequest) (PermissionResponse, error)
}
