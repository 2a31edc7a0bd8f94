package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/storage"
)

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "practice", Description: "Start or continue practice"},
	{Command: "level", Description: "Choose your level"},
	{Command: "topic", Description: "Focus on a topic"},
	{Command: "progress", Description: "Show your progress"},
	{Command: "stop", Description: "Stop the current practice"},
	{Command: "reset", Description: "Reset your progress"},
	{Command: "help", Description: "Help"},
}

type Handler struct {
	bot             BotAPI
	logger          *zap.Logger
	curriculum      *entities.Curriculum
	userService     UserService
	practiceService PracticeService
	progressService ProgressService
	settingsService SettingsService
	reportService   ReportService
	resetService    ResetService
	attempts        *storage.AttemptStorage
	messages        *storage.MessageStorage
}

func NewHandler(
	bot BotAPI,
	logger *zap.Logger,
	curriculum *entities.Curriculum,
	userService UserService,
	practiceService PracticeService,
	progressService ProgressService,
	settingsService SettingsService,
	reportService ReportService,
	resetService ResetService,
	attempts *storage.AttemptStorage,
	messages *storage.MessageStorage,
) *Handler {
	return &Handler{
		bot:             bot,
		logger:          logger,
		curriculum:      curriculum,
		userService:     userService,
		practiceService: practiceService,
		progressService: progressService,
		settingsService: settingsService,
		reportService:   reportService,
		resetService:    resetService,
		attempts:        attempts,
		messages:        messages,
	}
}

// RegisterCommands publishes the command list shown in the Telegram menu.
func (h *Handler) RegisterCommands() error {
	if _, err := h.bot.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text),
	)

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if _, err := h.userService.EnsureUser(ctx, userID, chatID); err != nil {
		h.logger.Error("failed to ensure user",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}

	if !update.Message.IsCommand() {
		_ = h.send(newPlainMessage(chatID, msgUnknownCommand))
		return
	}

	var fn HandlerFunc
	switch update.Message.Command() {
	case "start":
		fn = h.handleStart(userID)
	case "practice":
		fn = h.handlePractice(userID)
	case "level":
		fn = h.handleLevel(userID)
	case "topic":
		fn = h.handleTopic(userID)
	case "progress":
		fn = h.handleProgress(userID)
	case "stop":
		fn = h.handleStop(userID)
	case "reset":
		fn = h.handleReset()
	case "help":
		fn = h.handleHelp()
	default:
		fn = func(_ context.Context, chatID int64) error {
			return h.send(newPlainMessage(chatID, msgUnknownCommand))
		}
	}

	_ = h.withErrorHandling(fn)(ctx, chatID)
}

func (h *Handler) send(c tgbotapi.Chattable) error {
	if _, err := h.bot.Send(c); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// request is used for calls that return no message (edits without text,
// callback answers).
func (h *Handler) request(c tgbotapi.Chattable) {
	if _, err := h.bot.Request(c); err != nil {
		h.logger.Debug("telegram request failed", zap.Error(err))
	}
}

// isBlocked reports whether Telegram refused delivery because the user
// blocked the bot.
func isBlocked(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == 403
}
