package redis

import (
	"context"
	"sync"
	"time"

	"clinical-case-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions stay in a local map; their narration and load state cannot leave
//     the process.
//   - Redis holds a liveness marker per user carrying the session id, so other
//     instances can tell a user already has an active case.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.CaseSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.CaseSession),
	}
}

func (s *SessionStore) Put(userID string, session *app.CaseSession) *app.CaseSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions[userID]
	s.sessions[userID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), session.ID(), s.ttl).Err()
	return prev
}

func (s *SessionStore) Get(userID string) (*app.CaseSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if ok {
		_ = s.client.Expire(context.Background(), s.key(userID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(userID string, session *app.CaseSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[userID]
	if !ok || current != session {
		return
	}
	delete(s.sessions, userID)
	_ = s.client.Del(context.Background(), s.key(userID)).Err()
}

func (s *SessionStore) key(userID string) string {
	return "casesim:session:" + userID
}
