package bridge

import (
	"sync"
	"time"

	"github.com/telebridge/telebridge/pkg/telegram"
)

// memorySessionStore keeps all session state in process memory. The flow is
// short-lived enough that losing sessions on restart is acceptable.
type memorySessionStore struct {
	lock     sync.RWMutex
	sessions map[string]*Session
	byCode   map[string]string
	byToken  map[string]string
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		sessions: make(map[string]*Session),
		byCode:   make(map[string]string),
		byToken:  make(map[string]string),
	}
}

func (s *memorySessionStore) SaveSession(session *Session) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *memorySessionStore) GetSession(id string) (*Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *memorySessionStore) GetSessionByCode(code string) (*Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(s.sessions[id]), nil
}

func (s *memorySessionStore) GetSessionByToken(token string) (*Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(s.sessions[id]), nil
}

func (s *memorySessionStore) AttachCode(id, code string, user *telegram.UserRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Status != StatusPending {
		return ErrInvalidTransition
	}

	session.Status = StatusCoded
	session.Code = code
	session.User = user
	s.byCode[code] = id
	return nil
}

func (s *memorySessionStore) RedeemCode(code, token string, expiresAt time.Time) (*Session, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	session := s.sessions[id]
	if session.Status != StatusCoded {
		return nil, ErrInvalidTransition
	}

	// tombstone the code and attach the token in one critical section
	delete(s.byCode, code)
	session.Status = StatusRedeemed
	session.AccessToken = token
	session.TokenExpiresAt = expiresAt
	s.byToken[token] = id

	return copySession(session), nil
}

func (s *memorySessionStore) DeleteSession(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.removeLocked(session)
	return nil
}

func (s *memorySessionStore) EvictExpired(maxAge time.Duration) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	cutoff := time.Now().Add(-maxAge)
	evicted := 0
	for _, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			s.removeLocked(session)
			evicted++
		}
	}
	return evicted
}

func (s *memorySessionStore) removeLocked(session *Session) {
	delete(s.sessions, session.ID)
	if session.Code != "" {
		delete(s.byCode, session.Code)
	}
	if session.AccessToken != "" {
		delete(s.byToken, session.AccessToken)
	}
}

func copySession(session *Session) *Session {
	clone := *session
	if session.User != nil {
		user := *session.User
		clone.User = &user
	}
	return &clone
}
