package event

import "testing"

func TestUnmatchedActions(t *testing.T) {
	events := []AgentEvent{
		{Kind: KindAction, CallID: "c1", ToolName: "execute_bash"},
		{Kind: KindObservation, CallID: "c1", Success: true},
		{Kind: KindAction, CallID: "c2", ToolName: "file_editor"},
		{Kind: KindAction, CallID: "c3", ToolName: "execute_bash"},
		{Kind: KindUserRejection, CallID: "c3", Reason: "nope"},
		{Kind: KindMessage, Role: RoleAgent},
	}

	pending := UnmatchedActions(events)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(pending))
	}
	if pending[0].CallID != "c2" {
		t.Errorf("expected pending call c2, got %s", pending[0].CallID)
	}
}

func TestUnmatchedActionsToleratesOrphans(t *testing.T) {
	// An observation whose call id was never proposed must not panic or
	// surface as pending.
	events := []AgentEvent{
		{Kind: KindObservation, CallID: "ghost"},
		{Kind: KindAgentError, Error: "boom"}, // missing call id
	}
	if pending := UnmatchedActions(events); len(pending) != 0 {
		t.Fatalf("expected no pending actions, got %d", len(pending))
	}
}
