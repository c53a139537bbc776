// Package event defines the closed set of internal agent events emitted by
// the runtime during a conversation. Events are the unit of translation into
// client notifications and the unit of persistence for session replay.
package event

import (
	"encoding/json"
	"time"

	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

// Kind identifies the variant of an agent event. The set is closed: the
// translator switches over it exhaustively and logs anything unexpected.
type Kind string

const (
	// KindAction is an agent-proposed tool invocation.
	KindAction Kind = "action"
	// KindObservation is the result of a previously proposed action.
	KindObservation Kind = "observation"
	// KindUserRejection records that the user rejected a pending action.
	KindUserRejection Kind = "user_rejection"
	// KindAgentError records a runtime-side failure of an action.
	KindAgentError Kind = "agent_error"
	// KindMessage is a user or agent chat message.
	KindMessage Kind = "message"
	// KindStateUpdate is an execution status transition. Bookkeeping only,
	// never forwarded to the client.
	KindStateUpdate Kind = "state_update"
	// KindSystemPrompt is the initialization prompt. Never forwarded.
	KindSystemPrompt Kind = "system_prompt"
)

// Roles for Message events.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// ContentItem is one piece of message content: text or an image. Image data
// holds either a network URI or embedded (base64) data; the translator
// distinguishes the two by scheme prefix.
type ContentItem struct {
	Type     string `json:"type"` // "text" or "image"
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// AgentEvent is a single event in a conversation's trajectory. One struct
// covers all variants; Kind says which fields are meaningful. Consumers must
// tolerate events that violate the call-id pairing invariant (the runtime
// guarantees it, the translator renders best-effort regardless).
type AgentEvent struct {
	ID     string `json:"id,omitempty"`
	Kind   Kind   `json:"kind"`
	CallID string `json:"call_id,omitempty"`

	// Action fields.
	ToolName string          `json:"tool_name,omitempty"`
	Action   json.RawMessage `json:"action,omitempty"`
	Title    string          `json:"title,omitempty"` // renderer-provided summary
	Thought  string          `json:"thought,omitempty"`

	// Observation / rejection / error fields.
	Success bool   `json:"success,omitempty"`
	Content string `json:"content,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`

	// Message fields.
	Role  string        `json:"role,omitempty"`
	Items []ContentItem `json:"items,omitempty"`

	// StateUpdate field.
	Status session.ExecutionStatus `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// UnmatchedActions returns, in order, the Action events whose call id has no
// later Observation, UserRejection, or AgentError. These are the actions a
// confirmation decision applies to.
func UnmatchedActions(events []AgentEvent) []AgentEvent {
	resolved := make(map[string]bool)
	for _, ev := range events {
		switch ev.Kind {
		case KindObservation, KindUserRejection, KindAgentError:
			if ev.CallID != "" {
				resolved[ev.CallID] = true
			}
		}
	}

	var pending []AgentEvent
	for _, ev := range events {
		if ev.Kind == KindAction && ev.CallID != "" && !resolved[ev.CallID] {
			pending = append(pending, ev)
		}
	}
	return pending
}
