// Package pause provides the cooperative pause/cancel primitive for agent
// runs. A Signal is a session-scoped flag settable from independent
// producers (a keyboard listener, a client cancel request); the run loop
// observes it at runtime-reported boundaries and exits cooperatively. The
// signal never preempts a step mid-execution.
package pause

import "sync"

// Signal is a concurrently-set pause flag. Tripping invokes the observer
// callback exactly once per episode; the flag must be Reset before the next
// run starts or every subsequent run would immediately appear paused.
type Signal struct {
	mu        sync.Mutex
	observing bool
	tripped   bool
	fired     bool
	onTrip    func()
}

// NewSignal creates an untripped Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Start begins observing with the given callback. Idempotent; a second
// Start replaces the callback only if observation had been stopped.
func (s *Signal) Start(onTrip func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observing {
		return
	}
	s.observing = true
	s.onTrip = onTrip
}

// Stop ends observation. Idempotent. The tripped state survives Stop so a
// run loop can still see why it was asked to wind down.
func (s *Signal) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observing = false
	s.onTrip = nil
}

// Trip requests a cooperative stop. The first trip of an episode invokes
// the observer callback; repeat trips (held-down key, double cancel) are
// absorbed silently.
func (s *Signal) Trip() {
	s.mu.Lock()
	s.tripped = true
	var cb func()
	if s.observing && !s.fired {
		s.fired = true
		cb = s.onTrip
	}
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// IsTripped reports whether a pause has been requested. Non-blocking, safe
// from any goroutine.
func (s *Signal) IsTripped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripped
}

// Reset clears the flag for the next run episode.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tripped = false
	s.fired = false
}
