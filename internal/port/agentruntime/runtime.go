// Package agentruntime defines the port for the agent runtime: the external
// collaborator that owns the LLM loop, executes tool calls, and emits the
// internal event stream. The orchestrator drives conversations only through
// this interface.
package agentruntime

import (
	"context"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/mcp"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

// EventCallback receives each event the runtime emits for a conversation,
// in emission order. Callbacks must not block for long; the orchestrator
// feeds them into a bounded channel.
type EventCallback func(ev event.AgentEvent)

// ConversationSpec configures a new conversation.
type ConversationSpec struct {
	SessionID  string
	WorkingDir string
	MCPServers []mcp.ServerDef
}

// State is a snapshot of a conversation: its execution status and the event
// log accumulated so far.
type State struct {
	Status session.ExecutionStatus
	Events []event.AgentEvent
}

// Conversation is one live agent conversation. Handles are owned exclusively
// by their session and never shared.
type Conversation interface {
	// ID returns the conversation identifier (equal to the session id).
	ID() string

	// SendMessage queues a user message for the next run.
	SendMessage(ctx context.Context, msg event.AgentEvent) error

	// Run advances the conversation until the runtime reaches a boundary:
	// a terminal status, a pause, or a blocked confirmation. Blocking.
	Run(ctx context.Context) error

	// Pause requests a cooperative stop at the next safe point. Never
	// preempts a tool mid-execution. Idempotent.
	Pause()

	// State returns the current execution status and event log.
	State() State

	// RejectPendingActions rejects all unmatched actions with a reason the
	// agent can react to on its next turn.
	RejectPendingActions(ctx context.Context, reason string) error

	// Close releases the conversation handle.
	Close() error
}

// Runtime creates conversations. Implementations may run in-process or
// bridge to an out-of-process execution plane.
type Runtime interface {
	CreateConversation(ctx context.Context, spec ConversationSpec, onEvent EventCallback) (Conversation, error)
}
