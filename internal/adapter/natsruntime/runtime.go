// Package natsruntime bridges the agent runtime port to an out-of-process
// execution plane over NATS. The orchestrator issues control commands as
// request/reply and receives the conversation event stream on a per-session
// subject.
//
// Subject layout, one conversation per session id:
//
//	agent.conv.<id>.create   request: ConversationSpec   reply: ack
//	agent.conv.<id>.message  request: event.AgentEvent   reply: ack
//	agent.conv.<id>.run      request: empty              reply: ack at boundary
//	agent.conv.<id>.pause    publish: empty
//	agent.conv.<id>.state    request: empty              reply: State
//	agent.conv.<id>.reject   request: reason             reply: ack
//	agent.conv.<id>.close    publish: empty
//	agent.conv.<id>.events   subscribe: event.AgentEvent stream
package natsruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/port/agentruntime"
)

const subjectPrefix = "agent.conv."

// controlTimeout bounds short control commands (create, message, state,
// reject). Run has no timeout of its own; it ends at a runtime boundary or
// when its context is cancelled.
const controlTimeout = 10 * time.Second

// ack is the reply envelope for control commands.
type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// rejectRequest carries the reason for rejecting pending actions.
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Runtime implements the agent runtime port over a NATS connection.
type Runtime struct {
	nc  *nats.Conn
	log *slog.Logger
}

// Connect establishes the NATS connection for the execution plane.
func Connect(url string, log *slog.Logger) (*Runtime, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("nats runtime connected", "url", url)
	return &Runtime{nc: nc, log: log}, nil
}

// New wraps an existing NATS connection. Used by tests.
func New(nc *nats.Conn, log *slog.Logger) *Runtime {
	return &Runtime{nc: nc, log: log}
}

// Close shuts down the NATS connection. Conversations created from this
// runtime become unusable.
func (r *Runtime) Close() {
	r.nc.Close()
}

// CreateConversation asks the execution plane to start a conversation and
// subscribes to its event stream. Events are delivered to onEvent in
// emission order.
func (r *Runtime) CreateConversation(ctx context.Context, spec agentruntime.ConversationSpec, onEvent agentruntime.EventCallback) (agentruntime.Conversation, error) {
	conv := &conversation{
		id:  spec.SessionID,
		nc:  r.nc,
		log: r.log.With("session_id", spec.SessionID),
	}

	sub, err := r.nc.Subscribe(conv.subject("events"), func(msg *nats.Msg) {
		var ev event.AgentEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			conv.log.Error("malformed runtime event", "error", err)
			return
		}
		onEvent(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe events: %w", err)
	}
	conv.sub = sub

	if err := conv.request(ctx, "create", spec); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// conversation is a handle to one remote conversation.
type conversation struct {
	id  string
	nc  *nats.Conn
	log *slog.Logger
	sub *nats.Subscription

	closeOnce sync.Once
}

func (c *conversation) subject(op string) string {
	return subjectPrefix + c.id + "." + op
}

// request sends a control command and decodes the ack reply.
func (c *conversation) request(ctx context.Context, op string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, c.subject(op), data)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, c.id, err)
	}

	var a ack
	if err := json.Unmarshal(msg.Data, &a); err != nil {
		return fmt.Errorf("%s %s: malformed reply: %w", op, c.id, err)
	}
	if !a.OK {
		return fmt.Errorf("%s %s: %s", op, c.id, a.Error)
	}
	return nil
}

func (c *conversation) ID() string { return c.id }

// SendMessage queues a user message for the next run.
func (c *conversation) SendMessage(ctx context.Context, msg event.AgentEvent) error {
	return c.request(ctx, "message", msg)
}

// Run blocks until the execution plane reports a boundary: terminal status,
// pause, or a blocked confirmation. No timeout beyond ctx.
func (c *conversation) Run(ctx context.Context) error {
	msg, err := c.nc.RequestWithContext(ctx, c.subject("run"), nil)
	if err != nil {
		return fmt.Errorf("run %s: %w", c.id, err)
	}

	var a ack
	if err := json.Unmarshal(msg.Data, &a); err != nil {
		return fmt.Errorf("run %s: malformed reply: %w", c.id, err)
	}
	if !a.OK {
		return fmt.Errorf("run %s: %s", c.id, a.Error)
	}
	return nil
}

// Pause requests a cooperative stop. Fire and forget; the runtime stops at
// its next safe point and Run returns.
func (c *conversation) Pause() {
	if err := c.nc.Publish(c.subject("pause"), nil); err != nil {
		c.log.Error("pause publish failed", "error", err)
	}
}

// State fetches the current status and event log snapshot.
func (c *conversation) State() agentruntime.State {
	reqCtx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, c.subject("state"), nil)
	if err != nil {
		c.log.Error("state request failed", "error", err)
		return agentruntime.State{}
	}

	var st agentruntime.State
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		c.log.Error("malformed state reply", "error", err)
		return agentruntime.State{}
	}
	return st
}

// RejectPendingActions rejects all unmatched actions with the given reason.
func (c *conversation) RejectPendingActions(ctx context.Context, reason string) error {
	return c.request(ctx, "reject", rejectRequest{Reason: reason})
}

// Close tells the execution plane to drop the conversation and stops the
// event subscription. Idempotent.
func (c *conversation) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if pubErr := c.nc.Publish(c.subject("close"), nil); pubErr != nil {
			err = fmt.Errorf("close %s: %w", c.id, pubErr)
		}
		if subErr := c.sub.Unsubscribe(); subErr != nil && err == nil {
			err = fmt.Errorf("unsubscribe %s: %w", c.id, subErr)
		}
	})
	return err
}
