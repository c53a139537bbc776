// Package notification defines the typed client notifications produced by
// the event translator and streamed to connected clients, mirroring the
// session/update surface of the agent client protocol.
package notification

import "encoding/json"

// Type discriminates the notification variants.
type Type string

const (
	TypeThoughtChunk   Type = "agent_thought_chunk"
	TypeMessageChunk   Type = "agent_message_chunk"
	TypeToolCall       Type = "tool_call"
	TypeToolCallUpdate Type = "tool_call_update"
)

// ToolKind is the coarse tag clients use to pick an icon/renderer for a
// tool call.
type ToolKind string

const (
	ToolKindExecute ToolKind = "execute"
	ToolKindEdit    ToolKind = "edit"
	ToolKindRead    ToolKind = "read"
	ToolKindFetch   ToolKind = "fetch"
	ToolKindOther   ToolKind = "other"
)

// ToolCallStatus is the lifecycle state carried by tool_call and
// tool_call_update notifications.
type ToolCallStatus string

const (
	StatusPending    ToolCallStatus = "pending"
	StatusInProgress ToolCallStatus = "in_progress"
	StatusCompleted  ToolCallStatus = "completed"
	StatusFailed     ToolCallStatus = "failed"
)

// Location points a client at the file (and optionally line) an action
// touches, for follow-along rendering.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// RawOutput is the bounded structured summary attached to a
// tool_call_update: result text, rejection reason, or error text, never
// the full raw event.
type RawOutput struct {
	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Notification is one outbound client notification. Type says which fields
// are meaningful.
type Notification struct {
	Type Type `json:"type"`

	// Thought / message chunks.
	Text     string `json:"text,omitempty"`
	ImageURI string `json:"image_uri,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`

	// Tool call start / update.
	CallID    string          `json:"call_id,omitempty"`
	Title     string          `json:"title,omitempty"`
	Kind      ToolKind        `json:"kind,omitempty"`
	Status    ToolCallStatus  `json:"status,omitempty"`
	Content   string          `json:"content,omitempty"`
	Locations []Location      `json:"locations,omitempty"`
	RawInput  json.RawMessage `json:"raw_input,omitempty"`
	RawOutput *RawOutput      `json:"raw_output,omitempty"`
}
