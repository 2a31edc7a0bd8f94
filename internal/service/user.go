package service

import (
	"context"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

type UserService struct {
	repository UserRepository
}

func NewUserService(repository UserRepository) *UserService {
	return &UserService{repository: repository}
}

// EnsureUser registers the user on first contact and reactivates users
// who come back after blocking the bot. It reports whether the user is new.
func (s *UserService) EnsureUser(ctx context.Context, userID, chatID int64) (bool, error) {
	exists, err := s.repository.Exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, s.repository.SetActive(ctx, userID, true)
	}

	return s.repository.Save(ctx, entities.NewUser(userID, chatID))
}

// Deactivate marks a user the bot can no longer reach.
func (s *UserService) Deactivate(ctx context.Context, userID int64) error {
	return s.repository.SetActive(ctx, userID, false)
}
