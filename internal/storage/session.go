package storage

import (
	"sync"
	"time"
)

// Closer is a live session that can be shut down.
type Closer interface {
	Close()
}

type sessionEntry[S Closer] struct {
	session      S
	lastActivity time.Time
}

// SessionStorage holds one live practice session per user.
type SessionStorage[S Closer] struct {
	mu       sync.RWMutex
	sessions map[int64]*sessionEntry[S]
	now      func() time.Time
}

// NewSessionStorage creates a new SessionStorage.
func NewSessionStorage[S Closer]() *SessionStorage[S] {
	return &SessionStorage[S]{
		sessions: make(map[int64]*sessionEntry[S]),
		now:      time.Now,
	}
}

// Store saves the user's session, closing the one it replaces.
func (s *SessionStorage[S]) Store(userID int64, session S) {
	s.mu.Lock()
	prev, ok := s.sessions[userID]
	s.sessions[userID] = &sessionEntry[S]{session: session, lastActivity: s.now()}
	s.mu.Unlock()

	if ok {
		prev.session.Close()
	}
}

// Get returns the user's session and marks it as active.
func (s *SessionStorage[S]) Get(userID int64) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok {
		var zero S
		return zero, false
	}
	e.lastActivity = s.now()
	return e.session, true
}

// Delete closes and removes the user's session.
func (s *SessionStorage[S]) Delete(userID int64) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		e.session.Close()
	}
}

// Len returns the number of live sessions.
func (s *SessionStorage[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapIdle closes sessions not used for longer than ttl and returns the
// affected user ids.
func (s *SessionStorage[S]) ReapIdle(ttl time.Duration) []int64 {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var (
		reaped []int64
		closed []S
	)
	for userID, e := range s.sessions {
		if e.lastActivity.Before(cutoff) {
			reaped = append(reaped, userID)
			closed = append(closed, e.session)
			delete(s.sessions, userID)
		}
	}
	s.mu.Unlock()

	for _, c := range closed {
		c.Close()
	}
	return reaped
}

// CloseAll closes every session. Used on shutdown.
func (s *SessionStorage[S]) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[int64]*sessionEntry[S])
	s.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}
