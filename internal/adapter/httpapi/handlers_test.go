package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/AgentBridge/internal/adapter/fsstore"
	"github.com/Strob0t/AgentBridge/internal/adapter/ws"
	"github.com/Strob0t/AgentBridge/internal/config"
	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/domain/risk"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
	"github.com/Strob0t/AgentBridge/internal/port/agentruntime"
	"github.com/Strob0t/AgentBridge/internal/service"
	"github.com/Strob0t/AgentBridge/internal/translate"
)

// doneConv finishes immediately on every run.
type doneConv struct{ id string }

func (c *doneConv) ID() string                                        { return c.id }
func (c *doneConv) SendMessage(context.Context, event.AgentEvent) error { return nil }
func (c *doneConv) Run(context.Context) error                         { return nil }
func (c *doneConv) Pause()                                            {}
func (c *doneConv) State() agentruntime.State {
	return agentruntime.State{Status: session.StatusFinished}
}
func (c *doneConv) RejectPendingActions(context.Context, string) error { return nil }
func (c *doneConv) Close() error                                       { return nil }

type doneRuntime struct{}

func (doneRuntime) CreateConversation(_ context.Context, spec agentruntime.ConversationSpec, _ agentruntime.EventCallback) (agentruntime.Conversation, error) {
	return &doneConv{id: spec.SessionID}, nil
}

func testServer(t *testing.T, tokenHash string) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := fsstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	hub := ws.NewHub(log)
	wsClient := ws.NewClient(hub, time.Second, log)

	orch := service.New(log, store, doneRuntime{}, wsClient, translate.New(log), nil, nil, nil, service.Options{
		DefaultPolicy: policy.ConfirmRisky(risk.LevelHigh),
	})
	t.Cleanup(orch.Close)

	cfg := config.Defaults()
	cfg.Auth.TokenHash = tokenHash

	h := NewHandlers(orch, wsClient, hub, log)
	srv := httptest.NewServer(NewRouter(h, &cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := testServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/sessions", `{"working_dir":"/workspace"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decode[createSessionResponse](t, resp)
	if created.SessionID == "" {
		t.Fatal("expected session id")
	}

	resp = postJSON(t, srv.URL+"/api/v1/sessions/"+created.SessionID+"/prompt",
		`{"items":[{"type":"text","text":"hello"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prompt: expected 200, got %d", resp.StatusCode)
	}
	prompted := decode[promptResponse](t, resp)
	if prompted.StopReason != session.StopEndTurn {
		t.Errorf("expected end_turn, got %s", prompted.StopReason)
	}

	listResp, err := http.Get(srv.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatal(err)
	}
	sums := decode[[]session.Summary](t, listResp)
	if len(sums) != 1 || sums[0].ID != created.SessionID {
		t.Errorf("expected 1 session %s, got %+v", created.SessionID, sums)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/"+created.SessionID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", delResp.StatusCode)
	}
}

func TestPromptUnknownSessionReturns404(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/sessions/nope/prompt", `{"items":[{"type":"text","text":"x"}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPromptRequiresItems(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/sessions/any/prompt", `{}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSetPolicyRejectsBadMode(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/sessions", `{}`)
	created := decode[createSessionResponse](t, resp)

	resp = postJSON(t, srv.URL+"/api/v1/sessions/"+created.SessionID+"/policy", `{"mode":"sometimes"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSetPolicyApplies(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/sessions", `{}`)
	created := decode[createSessionResponse](t, resp)

	resp = postJSON(t, srv.URL+"/api/v1/sessions/"+created.SessionID+"/policy",
		`{"mode":"risky","threshold":"medium"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["policy"] != "risky(medium)" {
		t.Errorf("expected risky(medium), got %s", body["policy"])
	}
}

func TestResolvePermissionUnknown(t *testing.T) {
	srv := testServer(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/permission", `{"request_id":"nope","outcome":"approve_once"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv := testServer(t, string(hash))

	// Without a token: 401.
	resp := postJSON(t, srv.URL+"/api/v1/sessions", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	// With the right token: 201.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sessions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Content-Type", "application/json")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 with token, got %d", authed.StatusCode)
	}

	// Health stays open.
	open, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	open.Body.Close()
	if open.StatusCode != http.StatusOK {
		t.Errorf("expected open health endpoint, got %d", open.StatusCode)
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in   string
		want risk.Level
	}{
		{"", risk.LevelHigh},
		{"low", risk.LevelLow},
		{"medium", risk.LevelMedium},
		{"high", risk.LevelHigh},
		{"bogus", risk.LevelHigh},
	}
	for _, tt := range tests {
		if got := parseThreshold(tt.in); got != tt.want {
			t.Errorf("parseThreshold(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := testServer(t, "")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}
