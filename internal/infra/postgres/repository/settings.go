package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository provides access to user settings data in the database.
type SettingsRepository struct {
	db postgres.DBTX
}

// NewSettingsRepository creates a new SettingsRepository with the provided database pool.
func NewSettingsRepository(db postgres.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Create creates default settings for a user.
func (r *SettingsRepository) Create(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO user_settings (user_id, level, topic, created_at, updated_at)
		VALUES ($1, 'A1', '', NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("create settings: %w", err)
	}

	return nil
}

// GetByUserID retrieves settings for a user.
func (r *SettingsRepository) GetByUserID(ctx context.Context, userID int64) (*entities.UserSettings, error) {
	query := `
		SELECT user_id, level, topic, created_at, updated_at
		FROM user_settings
		WHERE user_id = $1
	`

	var (
		settings     entities.UserSettings
		level, topic string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&settings.UserID,
		&level,
		&topic,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	settings.Level = entities.Level(level)
	settings.Topic = entities.Topic(topic)
	return &settings, nil
}

// UpdateLevel updates the learner's current level.
func (r *SettingsRepository) UpdateLevel(ctx context.Context, userID int64, level entities.Level) error {
	query := `
		UPDATE user_settings
		SET level = $1, updated_at = $2
		WHERE user_id = $3
	`

	result, err := r.db.Exec(ctx, query, string(level), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// UpdateTopic updates the learner's topic focus. An empty topic clears it.
func (r *SettingsRepository) UpdateTopic(ctx context.Context, userID int64, topic entities.Topic) error {
	query := `
		UPDATE user_settings
		SET topic = $1, updated_at = $2
		WHERE user_id = $3
	`

	result, err := r.db.Exec(ctx, query, string(topic), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSettingsNotFound
	}

	return nil
}
