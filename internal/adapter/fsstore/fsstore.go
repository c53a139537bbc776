// Package fsstore implements the session store on the local filesystem.
// Each session is a JSON record file plus a JSONL append-only event log,
// so sessions survive process restarts without any external service.
package fsstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Strob0t/AgentBridge/internal/domain/event"
	"github.com/Strob0t/AgentBridge/internal/domain/session"
)

// Store persists session records under a base directory:
//
//	<dir>/<id>.json         session record
//	<dir>/<id>.events.jsonl append-only event log
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) eventsPath(id string) string {
	return filepath.Join(s.dir, id+".events.jsonl")
}

// SaveSession writes the record atomically via a temp file rename.
func (s *Store) SaveSession(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.ID, err)
	}

	tmp := s.recordPath(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // G306: session records are not secrets
		return fmt.Errorf("write session %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp, s.recordPath(rec.ID)); err != nil {
		return fmt.Errorf("commit session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession reads the record for the given id.
func (s *Store) GetSession(_ context.Context, id string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.recordPath(id)) //nolint:gosec // G304: path built from store dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, session.ErrUnknownSession
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	return &rec, nil
}

// ListSessions returns summaries of all stored sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(s.dir)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list session dir: %w", err)
	}

	var out []session.Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		rec, err := s.GetSession(ctx, id)
		if err != nil {
			// Skip records that vanished or fail to parse; a corrupt file
			// should not hide the rest of the sessions.
			continue
		}
		out = append(out, session.Summary{
			ID:           rec.ID,
			WorkingDir:   rec.WorkingDir,
			CreatedAt:    rec.CreatedAt,
			LastActiveAt: rec.LastActiveAt,
			EventCount:   s.countEvents(id),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// countEvents counts JSONL lines without decoding them.
func (s *Store) countEvents(id string) int {
	f, err := os.Open(s.eventsPath(id)) //nolint:gosec // G304: path built from store dir
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n
}

// DeleteSession removes a session record and its event log.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.recordPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.ErrUnknownSession
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if err := os.Remove(s.eventsPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session events %s: %w", id, err)
	}
	return nil
}

// AppendEvent appends one event as a JSONL line to the session's log.
func (s *Store) AppendEvent(_ context.Context, sessionID string, ev event.AgentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(sessionID)); errors.Is(err, os.ErrNotExist) {
		return session.ErrUnknownSession
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(s.eventsPath(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G302,G304: event logs are not secrets
	if err != nil {
		return fmt.Errorf("open event log %s: %w", sessionID, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event %s: %w", sessionID, err)
	}
	return nil
}

// LoadEvents returns the session's event log in append order.
func (s *Store) LoadEvents(_ context.Context, sessionID string) ([]event.AgentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(sessionID)); errors.Is(err, os.ErrNotExist) {
		return nil, session.ErrUnknownSession
	}

	f, err := os.Open(s.eventsPath(sessionID)) //nolint:gosec // G304: path built from store dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log %s: %w", sessionID, err)
	}
	defer f.Close()

	var events []event.AgentEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event.AgentEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse event log %s: %w", sessionID, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log %s: %w", sessionID, err)
	}
	return events, nil
}
