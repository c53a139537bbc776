package fsstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/domain/risk"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testRecord(id string) *session.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &session.Record{
		ID:           id,
		WorkingDir:   "/workspace/" + id,
		Policy:       policy.ConfirmRisky(risk.LevelHigh),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("sess-1")
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != rec.ID || got.WorkingDir != rec.WorkingDir {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.Policy.Mode != rec.Policy.Mode || got.Policy.Threshold != rec.Policy.Threshold {
		t.Errorf("policy mismatch: got %+v want %+v", got.Policy, rec.Policy)
	}
}

func TestGetUnknownSession(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	if !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("sess-1")
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Policy = policy.AlwaysConfirm()
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Policy.Mode != policy.ModeAlways {
		t.Errorf("expected updated policy, got %s", got.Policy.Mode)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testRecord("older")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := testRecord("newer")

	for _, rec := range []*session.Record{older, newer} {
		if err := s.SaveSession(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ID != "newer" || got[1].ID != "older" {
		t.Errorf("expected newest first, got %s then %s", got[0].ID, got[1].ID)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendEvent(ctx, "sess-1", event.AgentEvent{ID: "ev-1", Kind: event.KindMessage}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, "sess-1"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession after delete, got %v", err)
	}
	if err := s.DeleteSession(ctx, "sess-1"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession on double delete, got %v", err)
	}
}

func TestAppendAndLoadEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}

	events := []event.AgentEvent{
		{ID: "ev-1", Kind: event.KindMessage, Role: event.RoleUser},
		{ID: "ev-2", Kind: event.KindAction, CallID: "call-1", ToolName: "execute_bash"},
		{ID: "ev-3", Kind: event.KindObservation, CallID: "call-1"},
	}
	for _, ev := range events {
		if err := s.AppendEvent(ctx, "sess-1", ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	got, err := s.LoadEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, ev := range events {
		if got[i].ID != ev.ID || got[i].Kind != ev.Kind {
			t.Errorf("event %d: got %s/%s want %s/%s", i, got[i].ID, got[i].Kind, ev.ID, ev.Kind)
		}
	}
}

func TestAppendEventUnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.AppendEvent(context.Background(), "nope", event.AgentEvent{ID: "ev-1"})
	if !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestLoadEventsEmptyLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %d", len(got))
	}
}

func TestEventCountInSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		ev := event.AgentEvent{ID: string(rune('a' + i)), Kind: event.KindMessage}
		if err := s.AppendEvent(ctx, "sess-1", ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EventCount != 3 {
		t.Errorf("expected 1 session with 3 events, got %+v", got)
	}
}
