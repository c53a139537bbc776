// Package session defines the session domain entity and its lifecycle
// vocabulary: execution statuses reported by the agent runtime and the stop
// reasons surfaced to the client when a prompt turn ends.
package session

import (
	"errors"
	"time"

	"github.com/Strob0t/AgentBridge/internal/domain/policy"
)

// ExecutionStatus is the runtime-reported state of a conversation. Exactly
// one value holds at a time per session; it is the runtime's authority and
// read-only for the orchestrator.
type ExecutionStatus string

const (
	StatusRunning                ExecutionStatus = "running"
	StatusPaused                 ExecutionStatus = "paused"
	StatusWaitingForConfirmation ExecutionStatus = "waiting_for_confirmation"
	StatusFinished               ExecutionStatus = "finished"
	StatusStuck                  ExecutionStatus = "stuck"
	StatusError                  ExecutionStatus = "error"
)

// Terminal reports whether the status ends the current run.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusStuck, StatusError:
		return true
	default:
		return false
	}
}

// StopReason is the terminal classification returned to the client when a
// prompt turn ends. Runtime ERROR and FINISHED both map to end_turn; the
// distinction is logged, not surfaced.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopMaxTurnRequests StopReason = "max_turn_requests"
	StopCancelled       StopReason = "cancelled"
	StopError           StopReason = "error"
)

// ErrUnknownSession is returned for operations referencing a session id that
// is not in the store. Unknown ids never silently create a session.
var ErrUnknownSession = errors.New("unknown session")

// ErrRunInFlight is returned when a run is requested for a session that
// already has one executing.
var ErrRunInFlight = errors.New("run already in flight")

// Record is the persisted shape of a session: the plain keyed record handed
// to the session store. The event log is stored separately, append-only.
type Record struct {
	ID           string                    `json:"session_id"`
	WorkingDir   string                    `json:"working_directory"`
	Policy       policy.ConfirmationPolicy `json:"confirmation_policy"`
	CreatedAt    time.Time                 `json:"created_at"`
	LastActiveAt time.Time                 `json:"last_active_at"`
	Metadata     map[string]string         `json:"metadata,omitempty"`
}

// Summary is the listing shape of a session.
type Summary struct {
	ID           string    `json:"session_id"`
	WorkingDir   string    `json:"working_directory"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	EventCount   int       `json:"event_count"`
}
