// Package store keeps live sessions and their recent events in memory.
// Nothing survives a restart.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"debatecoach/agent/internal/orchestrator"
	"debatecoach/agent/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

// MaxEvents caps the per-session event log.
const MaxEvents = 200

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*orchestrator.Session
	events   map[string][]types.Event
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*orchestrator.Session),
		events:   make(map[string][]types.Event),
	}
}

func (s *Store) CreateSession(sess *orchestrator.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID()]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID()] = sess
	s.events[sess.ID()] = []types.Event{}
	return nil
}

func (s *Store) GetSession(id string) *orchestrator.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// DeleteSession closes and forgets a session. It reports whether it existed.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	delete(s.events, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
	return ok
}

// Sessions returns the live sessions in ID order.
func (s *Store) Sessions() []*orchestrator.Session {
	s.mu.RLock()
	out := make([]*orchestrator.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.Publish(sessionID, evt)
	return evt
}

// Publish records a session event; Store is an orchestrator.Sink. Events
// for unknown sessions are dropped.
func (s *Store) Publish(sessionID string, evt types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[sessionID]; !ok {
		return
	}
	s.events[sessionID] = append(s.events[sessionID], evt)
	if l := len(s.events[sessionID]); l > MaxEvents {
		// Keep space for a single truncation warning so the total stays at MaxEvents
		keep := MaxEvents - 1
		dropped := l - keep
		s.events[sessionID] = append([]types.Event(nil), s.events[sessionID][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep}}
		s.events[sessionID] = append(s.events[sessionID], warn)
	}
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}
