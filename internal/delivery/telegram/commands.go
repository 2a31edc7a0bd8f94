package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/service"
)

// handleStart greets the user and makes sure default settings exist.
func (h *Handler) handleStart(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if _, err := h.settingsService.GetOrCreate(ctx, userID); err != nil {
			h.logger.Error("failed to create settings", zap.Int64("user_id", userID), zap.Error(err))
		}
		return h.send(newMessage(chatID, welcomeMessage()))
	}
}

func (h *Handler) handleHelp() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		return h.send(newMessage(chatID, helpMessage()))
	}
}

// handlePractice re-sends the exercise the user has not finished yet, or
// serves the next one.
func (h *Handler) handlePractice(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if d, ok := h.practiceService.Current(userID); ok {
			if a, pending := h.attempts.Get(userID); pending && a.ItemID == d.Item.ID && len(d.Item.Body.Gaps) > 0 {
				return h.sendItem(userID, chatID, &service.Delivery{Item: d.Item, Fallback: d.Fallback}, a.Answered)
			}
		}
		return h.serveNext(userID)(ctx, chatID)
	}
}

// serveNext asks the session for the next exercise and sends it.
func (h *Handler) serveNext(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		d, err := h.practiceService.Next(ctx, userID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			h.logger.Error("failed to get next item",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return h.send(newPlainMessage(chatID, msgPracticeUnavailable))
		}

		h.attempts.Begin(userID, d.Item.ID)
		return h.sendItem(userID, chatID, d, nil)
	}
}

// sendItem sends an exercise and strips the keyboard from the previous one.
func (h *Handler) sendItem(userID, chatID int64, d *service.Delivery, answered map[int]bool) error {
	section, _ := h.curriculum.Section(d.Item.SectionID)

	if text := transitionMessage(d.Transition, d.Item, section); text != "" {
		if err := h.send(newMessage(chatID, text)); err != nil {
			return err
		}
	}

	msg := newMessage(chatID, formatItem(d.Item, section.Name))
	msg.ReplyMarkup = buildItemKeyboard(d.Item, answered)

	sent, err := h.bot.Send(msg)
	if err != nil {
		return err
	}

	prev, hadPrev := h.messages.UpsertAndGetPrev(userID, chatID, sent.MessageID)
	if hadPrev && prev.MessageID != sent.MessageID {
		h.request(tgbotapi.NewEditMessageReplyMarkup(prev.ChatID, prev.MessageID, emptyKeyboard()))
	}

	return nil
}

func (h *Handler) handleStop(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		h.practiceService.Stop(userID)
		h.attempts.Delete(userID)
		h.clearLastKeyboard(userID)
		return h.send(newPlainMessage(chatID, msgPracticeStopped))
	}
}

func (h *Handler) handleReset() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		msg := newMessage(chatID, resetPrompt())
		msg.ReplyMarkup = buildResetKeyboard()
		return h.send(msg)
	}
}

// clearLastKeyboard removes the answer buttons from the last exercise sent
// to the user.
func (h *Handler) clearLastKeyboard(userID int64) {
	prev, ok := h.messages.Get(userID)
	if !ok {
		return
	}
	h.messages.Delete(userID)
	h.request(tgbotapi.NewEditMessageReplyMarkup(prev.ChatID, prev.MessageID, emptyKeyboard()))
}
