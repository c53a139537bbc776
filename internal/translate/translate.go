// Package translate maps internal agent events onto ordered client
// notifications. Translation is stateless per event but authoritative about
// ordering: a thought always precedes its tool call, and a tool call update
// always references the originating call id.
package translate

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/notification"
)

// networkSchemes are the prefixes that mark image content as a URI rather
// than embedded data.
var networkSchemes = []string{"http://", "https://"}

// toolKinds maps tool names to the coarse kind tag. File-editor tools are
// special-cased in kindFor because their tag depends on the sub-command.
var toolKinds = map[string]notification.ToolKind{
	"execute_bash": notification.ToolKindExecute,
	"terminal":     notification.ToolKindExecute,
	"bash":         notification.ToolKindExecute,
	"browser":      notification.ToolKindFetch,
	"browser_use":  notification.ToolKindFetch,
}

var editorTools = map[string]bool{
	"str_replace_editor": true,
	"file_editor":        true,
}

// actionPayload is the subset of an action payload the translator inspects
// for titles and locations. Unknown fields are ignored.
type actionPayload struct {
	Command    string `json:"command"`
	Path       string `json:"path"`
	Directory  string `json:"directory"`
	ViewRange  []int  `json:"view_range"`
	InsertLine *int   `json:"insert_line"`
}

// Translator converts agent events into client notifications.
type Translator struct {
	log *slog.Logger
}

// New creates a Translator. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{log: log}
}

// Translate maps one live event into zero or more notifications. Malformed
// events are logged and dropped; one bad event never aborts the stream.
// User messages are not translated live; the client already has its own
// echo of what it sent.
func (t *Translator) Translate(ev event.AgentEvent) []notification.Notification {
	return t.translate(ev, false)
}

// Replay maps one historical event into notifications for session loading.
// Unlike live translation it includes user messages, so the client can
// reconstruct the full conversation.
func (t *Translator) Replay(ev event.AgentEvent) []notification.Notification {
	return t.translate(ev, true)
}

func (t *Translator) translate(ev event.AgentEvent, replay bool) []notification.Notification {
	switch ev.Kind {
	case event.KindSystemPrompt, event.KindStateUpdate:
		// Internal bookkeeping, never forwarded.
		return nil
	case event.KindAction:
		return t.translateAction(ev)
	case event.KindObservation:
		return t.translateResolution(ev, notification.StatusCompleted, notification.RawOutput{Result: ev.Content})
	case event.KindUserRejection:
		return t.translateResolution(ev, notification.StatusFailed, notification.RawOutput{Reason: ev.Reason})
	case event.KindAgentError:
		return t.translateResolution(ev, notification.StatusFailed, notification.RawOutput{Error: ev.Error})
	case event.KindMessage:
		return t.translateMessage(ev, replay)
	default:
		t.log.Debug("unhandled event kind", "kind", ev.Kind, "call_id", ev.CallID)
		return nil
	}
}

// translateAction emits the thought chunk (if any) strictly before the
// tool_call notification.
func (t *Translator) translateAction(ev event.AgentEvent) []notification.Notification {
	var out []notification.Notification

	if thought := strings.TrimSpace(ev.Thought); thought != "" {
		out = append(out, notification.Notification{
			Type: notification.TypeThoughtChunk,
			Text: thought,
		})
	}

	payload := parsePayload(t.log, ev)

	title := ev.Title
	if title == "" {
		title = ev.ToolName
	}

	out = append(out, notification.Notification{
		Type:      notification.TypeToolCall,
		CallID:    ev.CallID,
		Title:     title,
		Kind:      kindFor(ev.ToolName, payload.Command),
		Status:    notification.StatusInProgress,
		Locations: extractLocations(payload),
		RawInput:  ev.Action,
	})
	return out
}

// translateResolution emits exactly one tool_call_update. The status field
// is never skipped, even when content is empty.
func (t *Translator) translateResolution(ev event.AgentEvent, status notification.ToolCallStatus, raw notification.RawOutput) []notification.Notification {
	return []notification.Notification{{
		Type:      notification.TypeToolCallUpdate,
		CallID:    ev.CallID,
		Status:    status,
		Content:   ev.Content,
		RawOutput: &raw,
	}}
}

// translateMessage splits an agent message into one notification per content
// item. Whitespace-only text is skipped; images are tagged URI or embedded
// by scheme prefix. User messages only translate during replay.
func (t *Translator) translateMessage(ev event.AgentEvent, replay bool) []notification.Notification {
	if ev.Role == event.RoleUser && !replay {
		return nil
	}
	if ev.Role != event.RoleUser && ev.Role != event.RoleAgent {
		t.log.Debug("message event with unknown role", "role", ev.Role)
		return nil
	}

	var out []notification.Notification
	for _, item := range ev.Items {
		switch item.Type {
		case "text":
			if strings.TrimSpace(item.Text) == "" {
				continue
			}
			out = append(out, notification.Notification{
				Type: notification.TypeMessageChunk,
				Text: item.Text,
			})
		case "image":
			n := notification.Notification{
				Type:     notification.TypeMessageChunk,
				MimeType: item.MimeType,
			}
			if isNetworkURI(item.Data) {
				n.ImageURI = item.Data
			} else {
				n.Data = item.Data
			}
			out = append(out, n)
		default:
			t.log.Debug("skipping unknown content item type", "type", item.Type)
		}
	}
	return out
}

// parsePayload decodes the inspectable fields of an action payload. Decode
// failures are diagnostics, not stream errors.
func parsePayload(log *slog.Logger, ev event.AgentEvent) actionPayload {
	var p actionPayload
	if len(ev.Action) == 0 {
		return p
	}
	if err := json.Unmarshal(ev.Action, &p); err != nil {
		log.Debug("unparseable action payload", "call_id", ev.CallID, "error", err)
	}
	return p
}

// kindFor derives the coarse kind tag from the tool name. File-editor view
// commands map to read; every other file-editor command maps to edit.
func kindFor(toolName, command string) notification.ToolKind {
	if editorTools[toolName] {
		if command == "view" {
			return notification.ToolKindRead
		}
		return notification.ToolKindEdit
	}
	if k, ok := toolKinds[toolName]; ok {
		return k
	}
	return notification.ToolKindOther
}

// extractLocations pulls file locations out of an action payload when it
// exposes path, view_range, insert_line, or directory fields.
func extractLocations(p actionPayload) []notification.Location {
	var locs []notification.Location
	if p.Path != "" {
		loc := notification.Location{Path: p.Path}
		if len(p.ViewRange) > 0 {
			loc.Line = p.ViewRange[0]
		} else if p.InsertLine != nil {
			loc.Line = *p.InsertLine
		}
		locs = append(locs, loc)
	}
	if p.Directory != "" {
		locs = append(locs, notification.Location{Path: p.Directory})
	}
	return locs
}

func isNetworkURI(s string) bool {
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
