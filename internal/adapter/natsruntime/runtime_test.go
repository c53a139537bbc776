package natsruntime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/port/agentruntime"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Runtime {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := Connect(url, log)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// fakePlane emulates the execution-plane side of the protocol: it answers
// control requests with acks and can publish events on the stream subject.
type fakePlane struct {
	nc   *nats.Conn
	subs []*nats.Subscription

	mu   sync.Mutex
	seen map[string]int
}

func newFakePlane(t *testing.T, id string) *fakePlane {
	t.Helper()

	url := os.Getenv("NATS_URL")
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("fake plane connect: %v", err)
	}

	p := &fakePlane{nc: nc, seen: make(map[string]int)}
	for _, op := range []string{"create", "message", "run", "state", "reject"} {
		sub, err := nc.Subscribe(subjectPrefix+id+"."+op, func(msg *nats.Msg) {
			p.mu.Lock()
			p.seen[op]++
			p.mu.Unlock()

			var reply []byte
			if op == "state" {
				reply, _ = json.Marshal(agentruntime.State{Status: "running"})
			} else {
				reply, _ = json.Marshal(ack{OK: true})
			}
			_ = msg.Respond(reply)
		})
		if err != nil {
			t.Fatalf("fake plane subscribe %s: %v", op, err)
		}
		p.subs = append(p.subs, sub)
	}

	t.Cleanup(func() {
		for _, sub := range p.subs {
			_ = sub.Unsubscribe()
		}
		nc.Close()
	})
	return p
}

func (p *fakePlane) emit(t *testing.T, id string, ev event.AgentEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := p.nc.Publish(subjectPrefix+id+".events", data); err != nil {
		t.Fatalf("emit: %v", err)
	}
}

func (p *fakePlane) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[op]
}

func TestCreateAndRun(t *testing.T) {
	r := testConnect(t)
	id := "test-" + t.Name()
	plane := newFakePlane(t, id)

	var (
		mu     sync.Mutex
		events []event.AgentEvent
	)
	conv, err := r.CreateConversation(context.Background(), agentruntime.ConversationSpec{
		SessionID:  id,
		WorkingDir: "/tmp",
	}, func(ev event.AgentEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	defer conv.Close()

	if conv.ID() != id {
		t.Errorf("expected id %s, got %s", id, conv.ID())
	}
	if got := plane.count("create"); got != 1 {
		t.Errorf("expected 1 create, got %d", got)
	}

	if err := conv.SendMessage(context.Background(), event.AgentEvent{
		Kind: event.KindMessage,
		Role: event.RoleUser,
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := conv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	plane.emit(t, id, event.AgentEvent{ID: "ev-1", Kind: event.KindAction, CallID: "call-1"})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for event delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	if events[0].ID != "ev-1" {
		t.Errorf("expected ev-1, got %s", events[0].ID)
	}
	mu.Unlock()
}

func TestStateSnapshot(t *testing.T) {
	r := testConnect(t)
	id := "test-" + t.Name()
	newFakePlane(t, id)

	conv, err := r.CreateConversation(context.Background(), agentruntime.ConversationSpec{SessionID: id}, func(event.AgentEvent) {})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	defer conv.Close()

	st := conv.State()
	if st.Status != "running" {
		t.Errorf("expected running, got %q", st.Status)
	}
}

func TestRunCancelledContext(t *testing.T) {
	r := testConnect(t)
	id := "test-" + t.Name()

	// No fake plane answering "run": the request must end with ctx.
	conv := &conversation{id: id, nc: r.nc, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := conv.Run(ctx); err == nil {
		t.Fatal("expected error from cancelled run")
	}
}

func TestRejectPendingActions(t *testing.T) {
	r := testConnect(t)
	id := "test-" + t.Name()
	plane := newFakePlane(t, id)

	conv, err := r.CreateConversation(context.Background(), agentruntime.ConversationSpec{SessionID: id}, func(event.AgentEvent) {})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	defer conv.Close()

	if err := conv.RejectPendingActions(context.Background(), "declined"); err != nil {
		t.Fatalf("RejectPendingActions: %v", err)
	}
	if got := plane.count("reject"); got != 1 {
		t.Errorf("expected 1 reject, got %d", got)
	}
}
