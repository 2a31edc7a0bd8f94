package storage

import (
	"maps"
	"sync"
	"time"
)

// Attempt tracks a learner's answers to the item currently on screen.
type Attempt struct {
	ItemID    int64
	Answered  map[int]bool // gap index -> answered correctly
	StartedAt time.Time
}

// Correct returns how many gaps were answered correctly.
func (a Attempt) Correct() int {
	n := 0
	for _, ok := range a.Answered {
		if ok {
			n++
		}
	}
	return n
}

func (a *Attempt) clone() Attempt {
	cp := *a
	cp.Answered = maps.Clone(a.Answered)
	return cp
}

// AttemptStorage provides in-memory storage for attempts by user ID.
type AttemptStorage struct {
	mu       sync.Mutex
	attempts map[int64]*Attempt
}

// NewAttemptStorage creates a new AttemptStorage.
func NewAttemptStorage() *AttemptStorage {
	return &AttemptStorage{
		attempts: make(map[int64]*Attempt),
	}
}

// Begin starts a fresh attempt for itemID, replacing any previous one.
func (s *AttemptStorage) Begin(userID, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[userID] = &Attempt{
		ItemID:    itemID,
		Answered:  make(map[int]bool),
		StartedAt: time.Now(),
	}
}

// Answer records the answer to one gap. It reports false when the user has
// no attempt on itemID or the gap was already answered.
func (s *AttemptStorage) Answer(userID, itemID int64, gap int, correct bool) (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[userID]
	if !ok || a.ItemID != itemID {
		return Attempt{}, false
	}
	if _, done := a.Answered[gap]; done {
		return Attempt{}, false
	}
	a.Answered[gap] = correct
	return a.clone(), true
}

// Get returns a copy of the user's current attempt.
func (s *AttemptStorage) Get(userID int64) (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[userID]
	if !ok {
		return Attempt{}, false
	}
	return a.clone(), true
}

// Delete removes the user's attempt.
func (s *AttemptStorage) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, userID)
}
