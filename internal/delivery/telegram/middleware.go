package telegram

import (
	"context"

	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, chatID int64) error

func (h *Handler) withErrorHandling(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		err := fn(ctx, chatID)
		if err == nil {
			return nil
		}

		// The bot only runs in private chats, so the chat id is the user id.
		if isBlocked(err) {
			h.logger.Info("bot blocked by user, deactivating", zap.Int64("chat_id", chatID))
			h.practiceService.Stop(chatID)
			h.attempts.Delete(chatID)
			if err := h.userService.Deactivate(ctx, chatID); err != nil {
				h.logger.Error("failed to deactivate user", zap.Int64("chat_id", chatID), zap.Error(err))
			}
			return nil
		}

		h.logger.Error("handle error",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		_ = h.send(newPlainMessage(chatID, msgInternalError))
		return nil
	}
}
