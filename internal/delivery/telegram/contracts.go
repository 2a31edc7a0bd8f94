package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/service"
)

// BotAPI is the subset of *tgbotapi.BotAPI the handler uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type UserService interface {
	EnsureUser(ctx context.Context, userID, chatID int64) (bool, error)
	Deactivate(ctx context.Context, userID int64) error
}

type PracticeService interface {
	Next(ctx context.Context, userID int64) (*service.Delivery, error)
	Current(userID int64) (*service.Delivery, bool)
	Complete(ctx context.Context, userID, itemID int64, correct, total int, spent time.Duration) (*entities.CompletionResult, error)
	Stop(userID int64)
}

type ProgressService interface {
	Summary(ctx context.Context, userID int64) (*entities.ProgressSummary, error)
}

type SettingsService interface {
	GetOrCreate(ctx context.Context, userID int64) (*entities.UserSettings, error)
	UpdateLevel(ctx context.Context, userID int64, level entities.Level) error
	UpdateTopic(ctx context.Context, userID int64, topic entities.Topic) error
}

type ReportService interface {
	Report(ctx context.Context, userID, itemID int64, reason string) error
}

type ResetService interface {
	ResetUser(ctx context.Context, userID int64) error
}
