package memory

import (
	"sync"

	"clinical-case-service/internal/app"
)

// SessionStore keeps the active case session of each user in process memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.CaseSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.CaseSession),
	}
}

func (s *SessionStore) Put(userID string, session *app.CaseSession) *app.CaseSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions[userID]
	s.sessions[userID] = session
	return prev
}

func (s *SessionStore) Get(userID string) (*app.CaseSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Delete(userID string, session *app.CaseSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[userID]; ok && current == session {
		delete(s.sessions, userID)
	}
}
