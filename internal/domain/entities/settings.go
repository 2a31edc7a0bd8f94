package entities

import "time"

// UserSettings stores the learner's current practice focus.
type UserSettings struct {
	UserID    int64
	Level     Level
	Topic     Topic // empty means no topic focus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserSettings creates settings with the entry level and no topic focus.
func NewUserSettings(userID int64) *UserSettings {
	now := time.Now()
	return &UserSettings{
		UserID:    userID,
		Level:     LevelA1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
