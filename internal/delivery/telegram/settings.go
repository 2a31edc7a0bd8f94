package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/service"
)

func (h *Handler) handleLevel(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		settings, err := h.settingsService.GetOrCreate(ctx, userID)
		if err != nil {
			h.logger.Error("failed to get settings", zap.Int64("user_id", userID), zap.Error(err))
			return h.send(newPlainMessage(chatID, msgSettingsUnavailable))
		}

		msg := newMessage(chatID, formatLevelPrompt(settings.Level))
		msg.ReplyMarkup = buildLevelKeyboard(settings.Level)
		return h.send(msg)
	}
}

func (h *Handler) handleTopic(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		settings, err := h.settingsService.GetOrCreate(ctx, userID)
		if err != nil {
			h.logger.Error("failed to get settings", zap.Int64("user_id", userID), zap.Error(err))
			return h.send(newPlainMessage(chatID, msgSettingsUnavailable))
		}

		msg := newMessage(chatID, formatTopicPrompt(settings.Topic))
		msg.ReplyMarkup = buildTopicKeyboard(h.curriculum.Topics, settings.Topic)
		return h.send(msg)
	}
}

func (h *Handler) onLevel(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error) {
	param, err := singleParam(cd)
	if err != nil {
		return "", err
	}
	level, err := entities.ParseLevel(param)
	if err != nil {
		return "", errBadCallback
	}

	userID := cb.From.ID
	if err := h.settingsService.UpdateLevel(ctx, userID, level); err != nil {
		return "", err
	}
	h.endSession(userID)

	text := md(fmt.Sprintf("Level set to %s. Send /practice to continue.", level))
	return "", h.send(newEdit(cb.Message.Chat.ID, cb.Message.MessageID, text))
}

func (h *Handler) onTopic(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error) {
	param, err := singleParam(cd)
	if err != nil {
		return "", err
	}
	topic := entities.Topic(param)

	userID := cb.From.ID
	if err := h.settingsService.UpdateTopic(ctx, userID, topic); err != nil {
		if errors.Is(err, service.ErrUnknownTopic) {
			return "", errBadCallback
		}
		return "", err
	}
	h.endSession(userID)

	text := md("Topic focus cleared. Send /practice to continue.")
	if topic != "" {
		text = md(fmt.Sprintf("Topic set to %s. Send /practice to continue.", topic))
	}
	return "", h.send(newEdit(cb.Message.Chat.ID, cb.Message.MessageID, text))
}
