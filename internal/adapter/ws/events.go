package ws

import (
	"github.com/Strob0t/AgentBridge/internal/domain/notification"
	"github.com/Strob0t/AgentBridge/internal/port/client"
)

// WebSocket message types sent to clients.
const (
	// TypeSessionUpdate carries one session notification.
	TypeSessionUpdate = "session.update"
	// TypePermissionRequest asks connected clients to decide on blocked
	// actions. Answered via the HTTP permission endpoint.
	TypePermissionRequest = "permission.request"
	// TypePermissionResolved tells clients a pending request was answered
	// (by another client or by timeout) so they can dismiss the prompt.
	TypePermissionResolved = "permission.resolved"
)

// SessionUpdateEvent is the payload for TypeSessionUpdate.
type SessionUpdateEvent struct {
	SessionID    string                    `json:"session_id"`
	Notification notification.Notification `json:"notification"`
}

// PermissionResolvedEvent is the payload for TypePermissionResolved.
type PermissionResolvedEvent struct {
	RequestID string         `json:"request_id"`
	SessionID string         `json:"session_id"`
	Outcome   client.Outcome `json:"outcome"`
}
