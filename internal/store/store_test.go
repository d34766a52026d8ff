package store

import (
	"testing"

	"debatecoach/agent/internal/orchestrator"
)

func TestCreateAndGetSession(t *testing.T) {
	st := New()
	s := orchestrator.New("abc123", orchestrator.Options{Sink: st})
	if err := st.CreateSession(s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := st.CreateSession(s); err != ErrSessionExists {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	got := st.GetSession("abc123")
	if got == nil || got.ID() != s.ID() {
		t.Fatalf("expected session %q, got %#v", s.ID(), got)
	}
}

func TestSessionEventsLandInLog(t *testing.T) {
	st := New()
	s := orchestrator.New("s1", orchestrator.Options{Sink: st})
	st.CreateSession(s)
	if err := s.LockMotion("This House would abolish homework"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	evs := st.ListEvents("s1")
	if len(evs) != 1 || evs[0].Type != "phase_changed" || evs[0].Payload["to"] != "MOTION_LOCKED" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestEventLogIsCapped(t *testing.T) {
	st := New()
	st.CreateSession(orchestrator.New("s1", orchestrator.Options{}))
	for i := 0; i < MaxEvents+25; i++ {
		st.AppendEvent("s1", "tick", map[string]any{"i": i})
	}
	evs := st.ListEvents("s1")
	if len(evs) != MaxEvents {
		t.Fatalf("len = %d, want %d", len(evs), MaxEvents)
	}
	last := evs[len(evs)-1]
	if last.Type != "events_truncated" {
		t.Fatalf("last event = %s, want events_truncated", last.Type)
	}
	if evs[len(evs)-2].Payload["i"] != MaxEvents+24 {
		t.Fatalf("newest events were not kept")
	}
}

func TestEventsForUnknownSessionDropped(t *testing.T) {
	st := New()
	st.AppendEvent("ghost", "x", nil)
	if len(st.ListEvents("ghost")) != 0 {
		t.Fatalf("events recorded for unknown session")
	}
}

func TestDeleteSession(t *testing.T) {
	st := New()
	st.CreateSession(orchestrator.New("a", orchestrator.Options{}))
	st.CreateSession(orchestrator.New("b", orchestrator.Options{}))
	if ids := st.ListSessionIDs(); len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("ids = %v", ids)
	}
	if !st.DeleteSession("a") || st.DeleteSession("a") {
		t.Fatalf("delete should succeed once")
	}
	if st.GetSession("a") != nil || len(st.Sessions()) != 1 {
		t.Fatalf("session not removed")
	}
}
