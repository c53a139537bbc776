package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mcpcheck "github.com/Strob0t/AgentBridge/internal/adapter/mcp"
	"github.com/Strob0t/AgentBridge/internal/adapter/ws"
	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/mcp"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
	"github.com/Strob0t/AgentBridge/internal/port/client"
	"github.com/Strob0t/AgentBridge/internal/service"
)

// Handlers holds the API handler dependencies.
type Handlers struct {
	orch     *service.Orchestrator
	wsClient *ws.Client
	hub      *ws.Hub
	log      *slog.Logger
}

// NewHandlers wires the handler set.
func NewHandlers(orch *service.Orchestrator, wsClient *ws.Client, hub *ws.Hub, log *slog.Logger) *Handlers {
	return &Handlers{orch: orch, wsClient: wsClient, hub: hub, log: log}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Initialize answers the client handshake with server info and capabilities.
func (h *Handlers) Initialize(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Initialize())
}

type createSessionRequest struct {
	WorkingDir string            `json:"working_dir"`
	MCPServers []mcp.ServerDef   `json:"mcp_servers,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	SessionID string                 `json:"session_id"`
	MCPChecks []mcpcheck.CheckResult `json:"mcp_checks,omitempty"`
}

// CreateSession starts a new session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createSessionRequest](w, r)
	if !ok {
		return
	}

	id, checks, err := h.orch.NewSession(r.Context(), req.WorkingDir, req.MCPServers, req.Metadata)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id, MCPChecks: checks})
}

// ListSessions returns stored session summaries.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sums, err := h.orch.ListSessions(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if sums == nil {
		sums = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

// DeleteSession removes a session and its history.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadSessionRequest struct {
	WorkingDir string `json:"working_dir,omitempty"`
}

// LoadSession revives a stored session and replays its history to clients.
func (h *Handlers) LoadSession(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[loadSessionRequest](w, r)
	if !ok {
		return
	}
	if err := h.orch.LoadSession(r.Context(), chi.URLParam(r, "id"), req.WorkingDir); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

type promptRequest struct {
	Items []event.ContentItem `json:"items"`
}

type promptResponse struct {
	StopReason session.StopReason `json:"stop_reason"`
}

// Prompt runs one turn and blocks until it ends.
func (h *Handlers) Prompt(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[promptRequest](w, r)
	if !ok {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}

	stop, err := h.orch.Prompt(r.Context(), chi.URLParam(r, "id"), req.Items)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promptResponse{StopReason: stop})
}

// Cancel requests a cooperative stop of the session's current run.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

type setPolicyRequest struct {
	Mode      string `json:"mode"`
	Threshold string `json:"threshold,omitempty"`
}

// SetPolicy replaces the session's confirmation policy.
func (h *Handlers) SetPolicy(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[setPolicyRequest](w, r)
	if !ok {
		return
	}

	pol, err := policy.Parse(req.Mode, req.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.orch.SetPolicy(r.Context(), chi.URLParam(r, "id"), pol); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"policy": pol.String()})
}

type permissionDecision struct {
	RequestID string         `json:"request_id"`
	Outcome   client.Outcome `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	Threshold string         `json:"threshold,omitempty"`
}

// ResolvePermission delivers a client's answer to a pending permission
// request. 404 means the request is unknown, already answered, or timed out.
func (h *Handlers) ResolvePermission(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[permissionDecision](w, r)
	if !ok {
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	resolved := h.wsClient.Resolve(req.RequestID, client.PermissionResponse{
		Outcome:   req.Outcome,
		Reason:    req.Reason,
		Threshold: parseThreshold(req.Threshold),
	})
	if !resolved {
		writeError(w, http.StatusNotFound, "no pending permission request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
