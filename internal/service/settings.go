package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
)

var ErrUnknownTopic = errors.New("unknown topic")

type SettingsService struct {
	repository SettingsRepository
	curriculum *entities.Curriculum
}

func NewSettingsService(repository SettingsRepository, curriculum *entities.Curriculum) *SettingsService {
	return &SettingsService{repository: repository, curriculum: curriculum}
}

func (s *SettingsService) GetOrCreate(ctx context.Context, userID int64) (*entities.UserSettings, error) {
	settings, err := s.repository.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			// Create default settings.
			if err := s.repository.Create(ctx, userID); err != nil {
				return nil, err
			}
			// Retrieve newly created settings.
			return s.repository.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	return settings, nil
}

func (s *SettingsService) UpdateLevel(ctx context.Context, userID int64, level entities.Level) error {
	if level.Index() < 0 {
		return fmt.Errorf("%w: %q", entities.ErrUnknownLevel, level)
	}
	return s.repository.UpdateLevel(ctx, userID, level)
}

// UpdateTopic sets the topic focus. An empty topic clears it.
func (s *SettingsService) UpdateTopic(ctx context.Context, userID int64, topic entities.Topic) error {
	if topic != "" && !s.curriculum.HasTopic(topic) {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return s.repository.UpdateTopic(ctx, userID, topic)
}
