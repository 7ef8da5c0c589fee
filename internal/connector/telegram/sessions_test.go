package telegram

import (
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	s := newSessionStore(5 * time.Minute)
	s.set(42, session{kind: sessionCreate, step: stepPickProblem, exhibit: "Steam Engine"})

	sess, ok := s.get(42)
	if !ok {
		t.Fatal("expected session")
	}
	if sess.exhibit != "Steam Engine" || sess.step != stepPickProblem {
		t.Errorf("session = %+v", sess)
	}
}

func TestSessionExpires(t *testing.T) {
	s := newSessionStore(5 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.set(42, session{kind: sessionComplete, ticketID: 7})

	now = now.Add(5*time.Minute + time.Second)
	if _, ok := s.get(42); ok {
		t.Error("expected session to have expired")
	}
	// Expired entry is dropped, not resurrected
	if _, ok := s.get(42); ok {
		t.Error("expected expired session to stay gone")
	}
}

func TestSessionSetRestartsIdleClock(t *testing.T) {
	s := newSessionStore(5 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.set(42, session{kind: sessionCreate, step: stepPickExhibit})
	now = now.Add(4 * time.Minute)

	sess, ok := s.get(42)
	if !ok {
		t.Fatal("expected live session")
	}
	sess.step = stepTypeProblem
	s.set(42, sess)

	now = now.Add(4 * time.Minute)
	if _, ok := s.get(42); !ok {
		t.Error("expected refreshed session to still be live")
	}
}

func TestSessionClear(t *testing.T) {
	s := newSessionStore(5 * time.Minute)
	s.set(42, session{kind: sessionComplete, ticketID: 7})
	s.clear(42)
	if _, ok := s.get(42); ok {
		t.Error("expected session cleared")
	}
}
