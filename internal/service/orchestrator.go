// Package service implements the session orchestrator: the coordination core
// between the client transport, the agent runtime, and the session store. It
// owns session lifecycle, the prompt run loop with confirmation handling,
// and cooperative pause/cancel.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/AgentBridge/internal/adapter/mcp"
	"github.com/Strob0t/AgentBridge/internal/adapter/otel"
	"github.com/Strob0t/AgentBridge/internal/domain/event"
	mcpdomain "github.com/Strob0t/AgentBridge/internal/domain/mcp"
	"github.com/Strob0t/AgentBridge/internal/domain/notification"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/domain/risk"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
	"github.com/Strob0t/AgentBridge/internal/pause"
	"github.com/Strob0t/AgentBridge/internal/port/agentruntime"
	"github.com/Strob0t/AgentBridge/internal/port/cache"
	"github.com/Strob0t/AgentBridge/internal/port/client"
	"github.com/Strob0t/AgentBridge/internal/port/sessionstore"
	"github.com/Strob0t/AgentBridge/internal/translate"
)

// Options tunes orchestrator behavior. Zero values are replaced by the
// defaults below.
type Options struct {
	DefaultPolicy  policy.ConfirmationPolicy
	DefaultWorkDir string
	EventBuffer    int
	RejectReason   string
	RiskTTL        time.Duration
}

func (o *Options) fillDefaults() {
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.RejectReason == "" {
		o.RejectReason = "rejected by policy"
	}
	if o.RiskTTL <= 0 {
		o.RiskTTL = time.Hour
	}
	if o.DefaultPolicy.Validate() != nil {
		o.DefaultPolicy = policy.ConfirmRisky(risk.LevelHigh)
	}
}

// Orchestrator coordinates sessions. All collaborators are injected; there
// are no package-level singletons.
type Orchestrator struct {
	log        *slog.Logger
	store      sessionstore.Store
	runtime    agentruntime.Runtime
	client     client.Client
	translator *translate.Translator
	cache      cache.Cache   // nil disables risk caching
	checker    *mcp.Checker  // nil disables MCP pre-checks
	metrics    *otel.Metrics // nil disables metrics
	opts       Options

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the in-memory half of a session: the live conversation
// handle plus run coordination state. The store holds the durable half.
type sessionState struct {
	id     string
	conv   agentruntime.Conversation
	signal *pause.Signal

	policyMu sync.RWMutex
	policy   policy.ConfirmationPolicy

	// runMu serializes prompt turns. TryLock failure means a run is in
	// flight and the caller gets session.ErrRunInFlight.
	runMu sync.Mutex

	// sendMu serializes producers against shutdown: the runtime callback
	// may still be mid-delivery when the session is torn down, and a send
	// on a closed channel would panic.
	sendMu sync.Mutex
	closed bool

	events chan event.AgentEvent
	done   chan struct{}
}

// closeEvents stops the producer side, then closes the channel so the pump
// drains and exits. Safe against a callback blocked in a backpressure send:
// the pump keeps consuming until the channel actually closes.
func (st *sessionState) closeEvents() {
	st.sendMu.Lock()
	st.closed = true
	st.sendMu.Unlock()
	close(st.events)
}

func (st *sessionState) currentPolicy() policy.ConfirmationPolicy {
	st.policyMu.RLock()
	defer st.policyMu.RUnlock()
	return st.policy
}

func (st *sessionState) setPolicy(p policy.ConfirmationPolicy) {
	st.policyMu.Lock()
	st.policy = p
	st.policyMu.Unlock()
}

// New creates an Orchestrator. cache, checker, and metrics may be nil.
func New(
	log *slog.Logger,
	store sessionstore.Store,
	runtime agentruntime.Runtime,
	cl client.Client,
	translator *translate.Translator,
	riskCache cache.Cache,
	checker *mcp.Checker,
	metrics *otel.Metrics,
	opts Options,
) *Orchestrator {
	opts.fillDefaults()
	return &Orchestrator{
		log:        log,
		store:      store,
		runtime:    runtime,
		client:     cl,
		translator: translator,
		cache:      riskCache,
		checker:    checker,
		metrics:    metrics,
		opts:       opts,
		sessions:   make(map[string]*sessionState),
	}
}

// InitializeResult describes the server to a connecting client.
type InitializeResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	Capabilities struct {
		LoadSession bool `json:"load_session"`
	} `json:"capabilities"`
}

// Initialize answers the client handshake.
func (o *Orchestrator) Initialize() InitializeResult {
	res := InitializeResult{Name: "agentbridge", Version: "1.0.0"}
	res.Capabilities.LoadSession = true
	return res
}

// NewSession creates a session: optional MCP pre-checks, a fresh runtime
// conversation, a persisted record, and the event pump. Returns the session
// id and the pre-check results (failures are warnings, never fatal).
func (o *Orchestrator) NewSession(ctx context.Context, workingDir string, servers []mcpdomain.ServerDef, metadata map[string]string) (string, []mcp.CheckResult, error) {
	if workingDir == "" {
		workingDir = o.opts.DefaultWorkDir
	}

	var checks []mcp.CheckResult
	if o.checker != nil && len(servers) > 0 {
		checks = o.checker.CheckAll(ctx, servers)
		for _, res := range checks {
			if !res.Success {
				o.log.Warn("mcp server check failed", "server", res.Server, "error", res.Error)
			}
		}
	}

	id := uuid.NewString()
	st := &sessionState{
		id:     id,
		signal: pause.NewSignal(),
		policy: o.opts.DefaultPolicy,
		events: make(chan event.AgentEvent, o.opts.EventBuffer),
		done:   make(chan struct{}),
	}

	conv, err := o.runtime.CreateConversation(ctx, agentruntime.ConversationSpec{
		SessionID:  id,
		WorkingDir: workingDir,
		MCPServers: servers,
	}, o.enqueue(st))
	if err != nil {
		return "", nil, fmt.Errorf("create conversation: %w", err)
	}
	st.conv = conv

	now := time.Now().UTC()
	rec := &session.Record{
		ID:           id,
		WorkingDir:   workingDir,
		Policy:       st.policy,
		CreatedAt:    now,
		LastActiveAt: now,
		Metadata:     metadata,
	}
	if err := o.store.SaveSession(ctx, rec); err != nil {
		_ = conv.Close()
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	o.mu.Lock()
	o.sessions[id] = st
	o.mu.Unlock()
	go o.pump(st)

	if o.metrics != nil {
		o.metrics.SessionsCreated.Add(ctx, 1)
	}
	o.log.Info("session created", "session_id", id, "working_dir", workingDir, "policy", st.policy.String())
	return id, checks, nil
}

// LoadSession revives a stored session: a new runtime conversation plus a
// replay of the persisted event log through the translator, so the client
// reconstructs the full conversation including its own past messages.
func (o *Orchestrator) LoadSession(ctx context.Context, id, workingDir string) error {
	rec, err := o.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if workingDir == "" {
		workingDir = rec.WorkingDir
	}

	o.mu.Lock()
	_, active := o.sessions[id]
	o.mu.Unlock()

	if !active {
		st := &sessionState{
			id:     id,
			signal: pause.NewSignal(),
			policy: rec.Policy,
			events: make(chan event.AgentEvent, o.opts.EventBuffer),
			done:   make(chan struct{}),
		}
		conv, err := o.runtime.CreateConversation(ctx, agentruntime.ConversationSpec{
			SessionID:  id,
			WorkingDir: workingDir,
		}, o.enqueue(st))
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		st.conv = conv

		o.mu.Lock()
		o.sessions[id] = st
		o.mu.Unlock()
		go o.pump(st)
	}

	events, err := o.store.LoadEvents(ctx, id)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	for _, ev := range events {
		for _, n := range o.translator.Replay(ev) {
			if err := o.client.Notify(ctx, id, n); err != nil {
				o.log.Warn("replay notify failed", "session_id", id, "error", err)
			}
		}
	}

	rec.WorkingDir = workingDir
	rec.LastActiveAt = time.Now().UTC()
	if err := o.store.SaveSession(ctx, rec); err != nil {
		o.log.Warn("session record update failed", "session_id", id, "error", err)
	}

	if o.metrics != nil {
		o.metrics.SessionsLoaded.Add(ctx, 1)
	}
	o.log.Info("session loaded", "session_id", id, "events", len(events))
	return nil
}

// ListSessions returns stored session summaries.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]session.Summary, error) {
	return o.store.ListSessions(ctx)
}

// DeleteSession drops a session from memory and from the store.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	o.mu.Lock()
	st, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()

	if ok {
		st.signal.Trip()
		if err := st.conv.Close(); err != nil {
			o.log.Warn("conversation close failed", "session_id", id, "error", err)
		}
		st.closeEvents()
		<-st.done
	}
	return o.store.DeleteSession(ctx, id)
}

// SetPolicy replaces the session's confirmation policy. Takes effect at the
// next blocking check; an in-flight check keeps the value it already read.
func (o *Orchestrator) SetPolicy(ctx context.Context, id string, p policy.ConfirmationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	st, err := o.state(id)
	if err != nil {
		return err
	}
	st.setPolicy(p)
	o.persistPolicy(ctx, id, p)
	o.log.Info("policy replaced", "session_id", id, "policy", p.String())
	return nil
}

// Cancel requests a cooperative stop of the session's current run.
// Idempotent; a session with no run in flight is untouched (the flag is
// reset when the next prompt starts).
func (o *Orchestrator) Cancel(_ context.Context, id string) error {
	st, err := o.state(id)
	if err != nil {
		return err
	}
	st.signal.Trip()
	if o.metrics != nil {
		o.metrics.PromptsCancelled.Add(context.Background(), 1)
	}
	return nil
}

// CancelAll trips every active session. Wired to the keyboard listener.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	states := make([]*sessionState, 0, len(o.sessions))
	for _, st := range o.sessions {
		states = append(states, st)
	}
	o.mu.Unlock()

	for _, st := range states {
		st.signal.Trip()
	}
}

// Prompt runs one turn: queue the user message, then drive the conversation
// from boundary to boundary until a terminal status, a cancellation, or a
// confirmation decision that ends the turn. Returns the stop reason.
func (o *Orchestrator) Prompt(ctx context.Context, id string, items []event.ContentItem) (session.StopReason, error) {
	st, err := o.state(id)
	if err != nil {
		return "", err
	}
	if !st.runMu.TryLock() {
		return "", session.ErrRunInFlight
	}
	defer st.runMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st.signal.Reset()
	st.signal.Start(func() {
		// Ask the plane to stop at its next safe point, then stop waiting.
		st.conv.Pause()
		cancel()
	})
	defer st.signal.Stop()

	spanCtx, span := otel.StartPromptSpan(runCtx, id)
	defer span.End()
	runCtx = spanCtx

	start := time.Now()
	if o.metrics != nil {
		o.metrics.PromptsStarted.Add(runCtx, 1)
	}

	userMsg := event.AgentEvent{
		ID:        uuid.NewString(),
		Kind:      event.KindMessage,
		Role:      event.RoleUser,
		Items:     items,
		CreatedAt: start.UTC(),
	}
	if err := st.conv.SendMessage(runCtx, userMsg); err != nil {
		return session.StopError, fmt.Errorf("send message: %w", err)
	}
	if err := o.store.AppendEvent(runCtx, id, userMsg); err != nil {
		o.log.Warn("user message persist failed", "session_id", id, "error", err)
	}

	stop, err := o.runLoop(runCtx, st)

	if o.metrics != nil {
		o.metrics.PromptDuration.Record(context.Background(), time.Since(start).Seconds())
	}
	o.touch(id)
	o.log.Info("prompt finished", "session_id", id, "stop_reason", stop, "duration_ms", time.Since(start).Milliseconds())
	return stop, err
}

// runLoop drives the conversation until the turn ends.
func (o *Orchestrator) runLoop(ctx context.Context, st *sessionState) (session.StopReason, error) {
	for {
		if err := st.conv.Run(ctx); err != nil {
			if st.signal.IsTripped() || ctx.Err() != nil {
				return session.StopCancelled, nil
			}
			return session.StopError, fmt.Errorf("run: %w", err)
		}

		state := st.conv.State()
		switch state.Status {
		case session.StatusFinished:
			return session.StopEndTurn, nil
		case session.StatusError:
			// Conflated with end_turn on purpose; the distinction is logged.
			o.log.Warn("run ended with runtime error status", "session_id", st.id)
			return session.StopEndTurn, nil
		case session.StatusStuck:
			return session.StopMaxTurnRequests, nil
		case session.StatusPaused:
			return session.StopCancelled, nil
		case session.StatusWaitingForConfirmation:
			proceed, stop, err := o.handleConfirmation(ctx, st, state.Events)
			if !proceed {
				return stop, err
			}
		case session.StatusRunning:
			// Spurious boundary; keep driving.
		default:
			o.log.Warn("unexpected status at boundary", "session_id", st.id, "status", state.Status)
		}

		if st.signal.IsTripped() {
			return session.StopCancelled, nil
		}
	}
}

// handleConfirmation resolves one blocked confirmation. proceed=true means
// the loop should call Run again (approval is implicit: pending actions not
// rejected execute on the next run).
func (o *Orchestrator) handleConfirmation(ctx context.Context, st *sessionState, events []event.AgentEvent) (proceed bool, stop session.StopReason, err error) {
	pending := event.UnmatchedActions(events)
	if len(pending) == 0 {
		return true, "", nil
	}

	pol := st.currentPolicy()
	descs := make([]client.ActionDescription, 0, len(pending))
	needsAsk := false
	for _, act := range pending {
		lvl := o.classify(ctx, act)
		if pol.RequiresConfirmation(lvl) {
			needsAsk = true
		}
		descs = append(descs, client.ActionDescription{
			CallID:      act.CallID,
			Tool:        act.ToolName,
			Description: actionTitle(act),
			Risk:        lvl,
		})
	}
	if !needsAsk {
		return true, "", nil
	}

	req := client.PermissionRequest{
		RequestID: uuid.NewString(),
		SessionID: st.id,
		Title:     descs[0].Description,
		Actions:   descs,
	}

	permCtx, span := otel.StartPermissionSpan(ctx, st.id, req.RequestID)
	defer span.End()
	if o.metrics != nil {
		o.metrics.PermissionsRequested.Add(permCtx, 1)
	}

	resp, err := o.client.RequestPermission(permCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled while waiting for the decision: the pending actions
			// were never approved, so reject them before winding down. The
			// run context is already gone; use a fresh one for the reject.
			if rejErr := st.conv.RejectPendingActions(context.Background(), o.opts.RejectReason); rejErr != nil {
				o.log.Warn("reject after cancelled permission request", "session_id", st.id, "error", rejErr)
			}
			return false, session.StopCancelled, nil
		}
		// Transport failure or timeout: fail closed.
		o.log.Warn("permission round trip failed, rejecting pending actions",
			"session_id", st.id, "request_id", req.RequestID, "error", err)
		if o.metrics != nil {
			o.metrics.PermissionsDenied.Add(permCtx, 1)
		}
		if rejErr := st.conv.RejectPendingActions(ctx, o.opts.RejectReason); rejErr != nil {
			o.log.Error("reject after failed permission round trip", "session_id", st.id, "error", rejErr)
		}
		return false, session.StopError, nil
	}

	switch resp.Outcome {
	case client.OutcomeApproveOnce:
		if o.metrics != nil {
			o.metrics.PermissionsApproved.Add(permCtx, 1)
		}
		return true, "", nil

	case client.OutcomeRejectOnce:
		reason := resp.Reason
		if reason == "" {
			reason = o.opts.RejectReason
		}
		if o.metrics != nil {
			o.metrics.PermissionsDenied.Add(permCtx, 1)
		}
		if err := st.conv.RejectPendingActions(ctx, reason); err != nil {
			return false, session.StopError, fmt.Errorf("reject pending actions: %w", err)
		}
		return true, "", nil

	case client.OutcomeNeverConfirm:
		st.setPolicy(policy.NeverConfirm())
		o.persistPolicy(ctx, st.id, policy.NeverConfirm())
		if o.metrics != nil {
			o.metrics.PermissionsApproved.Add(permCtx, 1)
		}
		return true, "", nil

	case client.OutcomeConfirmRisky:
		next := policy.ConfirmRisky(resp.Threshold)
		if next.Validate() != nil {
			next = policy.ConfirmRisky(risk.LevelHigh)
		}
		st.setPolicy(next)
		o.persistPolicy(ctx, st.id, next)

		// Re-evaluate the same pending set once under the new policy. Still
		// blocking means the client picked a threshold that does not clear
		// these actions: reject them rather than ask again.
		for _, act := range pending {
			if next.RequiresConfirmation(o.classify(ctx, act)) {
				if o.metrics != nil {
					o.metrics.PermissionsDenied.Add(permCtx, 1)
				}
				if err := st.conv.RejectPendingActions(ctx, o.opts.RejectReason); err != nil {
					return false, session.StopError, fmt.Errorf("reject pending actions: %w", err)
				}
				return true, "", nil
			}
		}
		if o.metrics != nil {
			o.metrics.PermissionsApproved.Add(permCtx, 1)
		}
		return true, "", nil

	case client.OutcomeCancelled:
		st.conv.Pause()
		return false, session.StopCancelled, nil

	default:
		o.log.Warn("unknown permission outcome, rejecting", "session_id", st.id, "outcome", resp.Outcome)
		if o.metrics != nil {
			o.metrics.PermissionsDenied.Add(permCtx, 1)
		}
		if err := st.conv.RejectPendingActions(ctx, o.opts.RejectReason); err != nil {
			return false, session.StopError, fmt.Errorf("reject pending actions: %w", err)
		}
		return false, session.StopError, nil
	}
}

// classify ranks one pending action, consulting the risk cache first.
func (o *Orchestrator) classify(ctx context.Context, act event.AgentEvent) risk.Level {
	call := actionCall(act)
	key := "risk:" + call.Tool + "|" + call.Command + "|" + call.Path

	if o.cache != nil {
		if data, ok, err := o.cache.Get(ctx, key); err == nil && ok {
			return risk.ParseLevel(string(data))
		}
	}

	lvl := risk.Classify(call)

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, []byte(lvl), o.opts.RiskTTL); err != nil {
			o.log.Debug("risk cache set failed", "error", err)
		}
	}
	return lvl
}

// actionCall extracts the classifiable fields from an action event.
func actionCall(act event.AgentEvent) risk.ActionCall {
	call := risk.ActionCall{Tool: act.ToolName}
	if len(act.Action) > 0 {
		var payload struct {
			Command string `json:"command"`
			Path    string `json:"path"`
		}
		if err := json.Unmarshal(act.Action, &payload); err == nil {
			call.Command = payload.Command
			call.Path = payload.Path
		}
	}
	return call
}

// actionTitle renders a pending action for human review.
func actionTitle(act event.AgentEvent) string {
	if act.Title != "" {
		return act.Title
	}
	return act.ToolName
}

// enqueue returns the runtime event callback for a session. The channel is
// bounded: a full channel logs once and then applies backpressure rather
// than dropping events, since the log is the replay source.
func (o *Orchestrator) enqueue(st *sessionState) agentruntime.EventCallback {
	return func(ev event.AgentEvent) {
		st.sendMu.Lock()
		defer st.sendMu.Unlock()
		if st.closed {
			o.log.Debug("event after session shutdown dropped", "session_id", st.id, "kind", ev.Kind)
			return
		}
		select {
		case st.events <- ev:
		default:
			o.log.Warn("event channel full, applying backpressure", "session_id", st.id)
			st.events <- ev
		}
	}
}

// pump drains a session's event channel: persist first, then translate and
// notify. Per-session FIFO is preserved by the single goroutine.
func (o *Orchestrator) pump(st *sessionState) {
	defer close(st.done)
	for ev := range st.events {
		ctx := context.Background()
		if err := o.store.AppendEvent(ctx, st.id, ev); err != nil {
			o.log.Warn("event persist failed", "session_id", st.id, "kind", ev.Kind, "error", err)
		}
		for _, n := range o.translator.Translate(ev) {
			if n.Type == notification.TypeToolCall && o.metrics != nil {
				o.metrics.ToolCalls.Add(ctx, 1)
			}
			if err := o.client.Notify(ctx, st.id, n); err != nil {
				o.log.Warn("notify failed", "session_id", st.id, "type", n.Type, "error", err)
			}
		}
	}
}

// Close shuts down all active sessions. Store contents are untouched.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	states := make([]*sessionState, 0, len(o.sessions))
	for id := range o.sessions {
		states = append(states, o.sessions[id])
		delete(o.sessions, id)
	}
	o.mu.Unlock()

	for _, st := range states {
		st.signal.Trip()
		if err := st.conv.Close(); err != nil {
			o.log.Warn("conversation close failed", "session_id", st.id, "error", err)
		}
		st.closeEvents()
		<-st.done
	}
}

func (o *Orchestrator) state(id string) (*sessionState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.sessions[id]
	if !ok {
		return nil, session.ErrUnknownSession
	}
	return st, nil
}

// touch bumps the record's last-active timestamp.
func (o *Orchestrator) touch(id string) {
	ctx := context.Background()
	rec, err := o.store.GetSession(ctx, id)
	if err != nil {
		return
	}
	rec.LastActiveAt = time.Now().UTC()
	if err := o.store.SaveSession(ctx, rec); err != nil {
		o.log.Warn("session touch failed", "session_id", id, "error", err)
	}
}

// persistPolicy writes a policy change through to the session record.
func (o *Orchestrator) persistPolicy(ctx context.Context, id string, p policy.ConfirmationPolicy) {
	rec, err := o.store.GetSession(ctx, id)
	if err != nil {
		o.log.Warn("policy persist read failed", "session_id", id, "error", err)
		return
	}
	rec.Policy = p
	if err := o.store.SaveSession(ctx, rec); err != nil {
		o.log.Warn("policy persist failed", "session_id", id, "error", err)
	}
}
