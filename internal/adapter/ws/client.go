package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/AgentBridge/internal/domain/notification"
	"github.com/Strob0t/AgentBridge/internal/port/client"
)

// Client implements the client transport port over the hub. Notifications
// broadcast to every connected client; permission requests park a channel
// keyed by request id and the first Resolve call wins.
type Client struct {
	hub     *Hub
	log     *slog.Logger
	timeout time.Duration

	pending sync.Map // request id -> chan client.PermissionResponse
}

// NewClient wires a Client over the given hub. timeout bounds how long a
// permission request may stay unanswered.
func NewClient(hub *Hub, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{hub: hub, log: log, timeout: timeout}
}

// Notify broadcasts one session notification.
func (c *Client) Notify(ctx context.Context, sessionID string, n notification.Notification) error {
	c.hub.BroadcastEvent(ctx, TypeSessionUpdate, SessionUpdateEvent{
		SessionID:    sessionID,
		Notification: n,
	})
	return nil
}

// RequestPermission broadcasts the request and blocks until the first
// answer, the timeout, or ctx cancellation. Timeout and cancellation return
// an error; the caller treats any error as a denial.
func (c *Client) RequestPermission(ctx context.Context, req client.PermissionRequest) (client.PermissionResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ch := make(chan client.PermissionResponse, 1)
	c.pending.Store(req.RequestID, ch)
	defer c.pending.Delete(req.RequestID)

	c.hub.BroadcastEvent(ctx, TypePermissionRequest, req)
	c.log.Info("permission requested",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"actions", len(req.Actions),
		"timeout", c.timeout,
	)

	select {
	case resp := <-ch:
		c.hub.BroadcastEvent(ctx, TypePermissionResolved, PermissionResolvedEvent{
			RequestID: req.RequestID,
			SessionID: req.SessionID,
			Outcome:   resp.Outcome,
		})
		return resp, nil
	case <-time.After(c.timeout):
		c.log.Warn("permission request timed out",
			"request_id", req.RequestID,
			"session_id", req.SessionID,
		)
		return client.PermissionResponse{}, fmt.Errorf("permission request %s timed out", req.RequestID)
	case <-ctx.Done():
		return client.PermissionResponse{}, fmt.Errorf("permission request %s: %w", req.RequestID, ctx.Err())
	}
}

// Resolve delivers a client's answer to a pending request. Returns false if
// the request is unknown or already answered.
func (c *Client) Resolve(requestID string, resp client.PermissionResponse) bool {
	val, ok := c.pending.LoadAndDelete(requestID)
	if !ok {
		return false
	}
	ch, _ := val.(chan client.PermissionResponse)
	if ch == nil {
		return false
	}
	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}
