package storage

import (
	"sync"
	"time"
)

// PracticeMessage is the last item message sent to a chat.
type PracticeMessage struct {
	ChatID    int64
	MessageID int
	SentAt    time.Time
}

// MessageStorage remembers the last practice message per user so its
// keyboard can be removed once the next item is sent.
type MessageStorage struct {
	mu       sync.RWMutex
	messages map[int64]PracticeMessage
}

func NewMessageStorage() *MessageStorage {
	return &MessageStorage{
		messages: make(map[int64]PracticeMessage),
	}
}

func (s *MessageStorage) Get(userID int64) (PracticeMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[userID]
	return msg, ok
}

func (s *MessageStorage) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, userID)
}

// UpsertAndGetPrev stores the new message and returns the one it replaced.
func (s *MessageStorage) UpsertAndGetPrev(userID int64, chatID int64, messageID int) (prev PracticeMessage, hadPrev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev = s.messages[userID]

	s.messages[userID] = PracticeMessage{
		ChatID:    chatID,
		MessageID: messageID,
		SentAt:    time.Now(),
	}

	return prev, hadPrev
}
