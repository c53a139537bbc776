// Package sessionstore defines the persistence port for session records and
// their append-only event logs. Stores hold plain keyed records; all
// orchestration state lives in memory with the orchestrator.
package sessionstore

import (
	"context"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

// Store persists sessions. Implementations must return
// session.ErrUnknownSession for ids they do not hold.
type Store interface {
	// SaveSession creates or updates a session record.
	SaveSession(ctx context.Context, rec *session.Record) error

	// GetSession returns the record for the given id.
	GetSession(ctx context.Context, id string) (*session.Record, error)

	// ListSessions returns summaries of all stored sessions, newest first.
	ListSessions(ctx context.Context) ([]session.Summary, error)

	// DeleteSession removes a session record and its event log.
	DeleteSession(ctx context.Context, id string) error

	// AppendEvent appends one event to the session's ordered log.
	AppendEvent(ctx context.Context, sessionID string, ev event.AgentEvent) error

	// LoadEvents returns the session's event log in append order. The log
	// is sufficient to reconstruct the message replay on session load.
	LoadEvents(ctx context.Context, sessionID string) ([]event.AgentEvent, error)
}
