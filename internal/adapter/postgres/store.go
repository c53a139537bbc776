package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

// Store implements the session store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveSession upserts a session record.
func (s *Store) SaveSession(ctx context.Context, rec *session.Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if rec.Metadata == nil {
		meta = []byte("{}")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, working_dir, policy_mode, policy_threshold, metadata, created_at, last_active_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   working_dir = EXCLUDED.working_dir,
		   policy_mode = EXCLUDED.policy_mode,
		   policy_threshold = EXCLUDED.policy_threshold,
		   metadata = EXCLUDED.metadata,
		   last_active_at = EXCLUDED.last_active_at`,
		rec.ID, rec.WorkingDir, string(rec.Policy.Mode), string(rec.Policy.Threshold),
		meta, rec.CreatedAt, rec.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession returns the record for the given id.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Record, error) {
	var (
		rec       session.Record
		mode      string
		threshold string
		meta      []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, working_dir, policy_mode, policy_threshold, metadata, created_at, last_active_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.WorkingDir, &mode, &threshold, &meta, &rec.CreatedAt, &rec.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrUnknownSession
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	pol, err := policy.Parse(mode, threshold)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	rec.Policy = pol

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("get session %s metadata: %w", id, err)
		}
	}
	return &rec, nil
}

// ListSessions returns summaries of all stored sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.working_dir, s.created_at, s.last_active_at,
		        (SELECT count(*) FROM session_events e WHERE e.session_id = s.id)
		 FROM sessions s ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []session.Summary
	for rows.Next() {
		var sum session.Summary
		if err := rows.Scan(&sum.ID, &sum.WorkingDir, &sum.CreatedAt, &sum.LastActiveAt, &sum.EventCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}

// DeleteSession removes a session and, via cascade, its event log.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrUnknownSession
	}
	return nil
}

// AppendEvent appends one event to the session's ordered log.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev event.AgentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_events (session_id, payload) VALUES ($1, $2)`,
		sessionID, payload)
	if err != nil {
		// A foreign key violation means the session row is gone.
		if exists, checkErr := s.sessionExists(ctx, sessionID); checkErr == nil && !exists {
			return session.ErrUnknownSession
		}
		return fmt.Errorf("append event %s: %w", sessionID, err)
	}
	return nil
}

// LoadEvents returns the session's event log in append order.
func (s *Store) LoadEvents(ctx context.Context, sessionID string) ([]event.AgentEvent, error) {
	exists, err := s.sessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, session.ErrUnknownSession
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM session_events WHERE session_id = $1 ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []event.AgentEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev event.AgentEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("parse event %s: %w", sessionID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) sessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", id, err)
	}
	return exists, nil
}
