package translate

import (
	"encoding/json"
	"testing"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/notification"
)

func TestActionWithThoughtOrdering(t *testing.T) {
	tr := New(nil)
	ev := event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "call-1",
		ToolName: "execute_bash",
		Thought:  "I should check the directory first.",
		Action:   json.RawMessage(`{"command":"ls -la"}`),
	}

	out := tr.Translate(ev)
	if len(out) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(out))
	}
	if out[0].Type != notification.TypeThoughtChunk {
		t.Errorf("first notification must be the thought, got %s", out[0].Type)
	}
	if out[1].Type != notification.TypeToolCall {
		t.Errorf("second notification must be the tool call, got %s", out[1].Type)
	}
	if out[1].CallID != "call-1" {
		t.Errorf("tool call must carry the call id, got %q", out[1].CallID)
	}
	if out[1].Kind != notification.ToolKindExecute {
		t.Errorf("execute_bash must tag as execute, got %s", out[1].Kind)
	}
	if out[1].Status != notification.StatusInProgress {
		t.Errorf("tool call must start in_progress, got %s", out[1].Status)
	}
}

func TestActionWithoutThought(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "call-2",
		ToolName: "execute_bash",
		Thought:  "   ",
		Action:   json.RawMessage(`{"command":"pwd"}`),
	})
	if len(out) != 1 {
		t.Fatalf("whitespace thought must be skipped, got %d notifications", len(out))
	}
	if out[0].Type != notification.TypeToolCall {
		t.Errorf("expected tool call, got %s", out[0].Type)
	}
}

func TestActionTitlePrefersSummary(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "call-3",
		ToolName: "execute_bash",
		Title:    "$ ls -la",
	})
	if out[0].Title != "$ ls -la" {
		t.Errorf("renderer summary must win over tool name, got %q", out[0].Title)
	}

	out = tr.Translate(event.AgentEvent{Kind: event.KindAction, CallID: "call-4", ToolName: "execute_bash"})
	if out[0].Title != "execute_bash" {
		t.Errorf("missing summary must fall back to tool name, got %q", out[0].Title)
	}
}

func TestFileEditorKinds(t *testing.T) {
	tr := New(nil)
	tests := []struct {
		name    string
		tool    string
		payload string
		want    notification.ToolKind
	}{
		{"view maps to read", "str_replace_editor", `{"command":"view","path":"/tmp/a.go"}`, notification.ToolKindRead},
		{"create maps to edit", "str_replace_editor", `{"command":"create","path":"/tmp/a.go"}`, notification.ToolKindEdit},
		{"str_replace maps to edit", "file_editor", `{"command":"str_replace","path":"/tmp/a.go"}`, notification.ToolKindEdit},
		{"browser maps to fetch", "browser", `{}`, notification.ToolKindFetch},
		{"unknown maps to other", "planner", `{}`, notification.ToolKindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tr.Translate(event.AgentEvent{
				Kind:     event.KindAction,
				CallID:   "c",
				ToolName: tt.tool,
				Action:   json.RawMessage(tt.payload),
			})
			if out[0].Kind != tt.want {
				t.Errorf("kind = %s, want %s", out[0].Kind, tt.want)
			}
		})
	}
}

func TestLocationExtraction(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "c",
		ToolName: "file_editor",
		Action:   json.RawMessage(`{"command":"view","path":"/src/main.go","view_range":[42,60]}`),
	})
	locs := out[0].Locations
	if len(locs) != 1 || locs[0].Path != "/src/main.go" || locs[0].Line != 42 {
		t.Fatalf("unexpected locations: %+v", locs)
	}

	out = tr.Translate(event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "c",
		ToolName: "file_editor",
		Action:   json.RawMessage(`{"command":"insert","path":"/src/main.go","insert_line":7}`),
	})
	if out[0].Locations[0].Line != 7 {
		t.Fatalf("insert_line must populate the line, got %+v", out[0].Locations)
	}
}

func TestObservationAlwaysCarriesStatus(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind:   event.KindObservation,
		CallID: "call-5",
		// Content intentionally empty.
	})
	if len(out) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(out))
	}
	n := out[0]
	if n.Type != notification.TypeToolCallUpdate || n.Status != notification.StatusCompleted {
		t.Errorf("empty observation must still produce a completed update, got %+v", n)
	}
}

func TestRejectionAndErrorFail(t *testing.T) {
	tr := New(nil)

	out := tr.Translate(event.AgentEvent{Kind: event.KindUserRejection, CallID: "c", Reason: "too risky"})
	if out[0].Status != notification.StatusFailed || out[0].RawOutput.Reason != "too risky" {
		t.Errorf("rejection must fail with reason, got %+v", out[0])
	}

	out = tr.Translate(event.AgentEvent{Kind: event.KindAgentError, CallID: "c", Error: "tool crashed"})
	if out[0].Status != notification.StatusFailed || out[0].RawOutput.Error != "tool crashed" {
		t.Errorf("agent error must fail with error text, got %+v", out[0])
	}
}

func TestAgentMessageSplitting(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind: event.KindMessage,
		Role: event.RoleAgent,
		Items: []event.ContentItem{
			{Type: "text", Text: "Here is the diagram:"},
			{Type: "text", Text: "   "},
			{Type: "image", Data: "https://example.com/diag.png", MimeType: "image/png"},
			{Type: "image", Data: "iVBORw0KGgo=", MimeType: "image/png"},
		},
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 notifications (blank text skipped), got %d", len(out))
	}
	if out[1].ImageURI == "" || out[1].Data != "" {
		t.Errorf("http image must be a URI, got %+v", out[1])
	}
	if out[2].Data == "" || out[2].ImageURI != "" {
		t.Errorf("base64 image must be embedded data, got %+v", out[2])
	}
}

func TestUserMessagesOnlyInReplay(t *testing.T) {
	tr := New(nil)
	ev := event.AgentEvent{
		Kind:  event.KindMessage,
		Role:  event.RoleUser,
		Items: []event.ContentItem{{Type: "text", Text: "fix the bug"}},
	}

	if out := tr.Translate(ev); len(out) != 0 {
		t.Fatalf("live user message must not translate, got %d notifications", len(out))
	}
	if out := tr.Replay(ev); len(out) != 1 {
		t.Fatalf("replayed user message must translate, got %d notifications", len(out))
	}
}

func TestFilteredKinds(t *testing.T) {
	tr := New(nil)
	for _, kind := range []event.Kind{event.KindSystemPrompt, event.KindStateUpdate} {
		if out := tr.Translate(event.AgentEvent{Kind: kind}); len(out) != 0 {
			t.Errorf("%s must never translate, got %d notifications", kind, len(out))
		}
	}
}

func TestMalformedPayloadDoesNotAbort(t *testing.T) {
	tr := New(nil)
	out := tr.Translate(event.AgentEvent{
		Kind:     event.KindAction,
		CallID:   "c",
		ToolName: "execute_bash",
		Action:   json.RawMessage(`{not json`),
	})
	if len(out) != 1 {
		t.Fatalf("malformed payload must still yield a tool call, got %d", len(out))
	}
}
