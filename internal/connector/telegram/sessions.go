package telegram

import (
	"sync"
	"time"
)

type sessionKind int

const (
	sessionCreate sessionKind = iota
	sessionComplete
)

type createStep int

const (
	stepPickExhibit createStep = iota
	stepPickProblem
	stepTypeProblem
)

// session is the per-user state of an in-flight dialog: either the two-step
// ticket creation flow or a pending resolution-comment prompt.
type session struct {
	kind     sessionKind
	step     createStep
	exhibit  string
	ticketID int64
	deadline time.Time
}

// sessionStore keeps dialog state per Telegram user id. Sessions expire
// lazily after the idle timeout so an abandoned prompt never swallows an
// unrelated message typed hours later.
type sessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[int64]session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl: ttl,
		now: time.Now,
		m:   make(map[int64]session),
	}
}

// set stores the user's session and restarts its idle clock.
func (s *sessionStore) set(userID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.deadline = s.now().Add(s.ttl)
	s.m[userID] = sess
}

// get returns the user's live session, dropping it if the idle timeout has
// passed.
func (s *sessionStore) get(userID int64) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[userID]
	if !ok {
		return session{}, false
	}
	if s.now().After(sess.deadline) {
		delete(s.m, userID)
		return session{}, false
	}
	return sess, true
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
