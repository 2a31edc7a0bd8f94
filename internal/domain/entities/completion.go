package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid completion input")

// CompletionInput is a finished attempt submitted by a learner.
type CompletionInput struct {
	UserID       int64
	ItemID       int64
	CorrectCount int
	TotalCount   int
	TimeSpent    time.Duration // optional
}

// Validate rejects negative counts and more correct answers than answers.
func (in CompletionInput) Validate() error {
	if in.CorrectCount < 0 || in.TotalCount < 0 {
		return fmt.Errorf("%w: negative counts", ErrInvalidInput)
	}
	if in.CorrectCount > in.TotalCount {
		return fmt.Errorf("%w: correct %d > total %d", ErrInvalidInput, in.CorrectCount, in.TotalCount)
	}
	if in.TimeSpent < 0 {
		return fmt.Errorf("%w: negative time spent", ErrInvalidInput)
	}
	return nil
}

// CompletionEvent is the immutable record of one submitted completion.
// Duplicate submissions produce distinct events.
type CompletionEvent struct {
	ID           uuid.UUID
	UserID       int64
	ItemID       int64
	CorrectCount int
	TotalCount   int
	TimeSpent    time.Duration
	CompletedAt  time.Time
}

// NewCompletionEvent stamps an input with a fresh event id.
func NewCompletionEvent(in CompletionInput, at time.Time) *CompletionEvent {
	return &CompletionEvent{
		ID:           uuid.New(),
		UserID:       in.UserID,
		ItemID:       in.ItemID,
		CorrectCount: in.CorrectCount,
		TotalCount:   in.TotalCount,
		TimeSpent:    in.TimeSpent,
		CompletedAt:  at,
	}
}

// CompletionResult is returned to the caller after a completion is recorded.
type CompletionResult struct {
	EventID            uuid.UUID
	StreakLength       int
	SectionAdvanced    bool
	Partial            bool   // the item could not be resolved; no section credit
	SectionID          string // empty when Partial
	LastCompletedOrder int
}
