package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/grammar-practice-bot/internal/storage"
)

// callbackFunc handles one callback and returns the toast shown to the user.
type callbackFunc func(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		h.request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	cd := decodeCallback(cb.Data)

	var fn callbackFunc
	switch cd.Action {
	case actionAnswer:
		fn = h.onAnswer
	case actionReport:
		fn = h.onReport
	case actionLevel:
		fn = h.onLevel
	case actionTopic:
		fn = h.onTopic
	case actionReset:
		fn = h.onReset
	default:
		h.logger.Warn("unknown callback", zap.String("data", cb.Data))
		h.request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	toast, err := fn(ctx, cb, cd)

	// Remove the user's "clock".
	h.request(tgbotapi.NewCallback(cb.ID, toast))

	if errors.Is(err, errBadCallback) {
		h.logger.Warn("malformed callback", zap.String("data", cb.Data))
		return
	}
	_ = h.withErrorHandling(func(context.Context, int64) error { return err })(ctx, cb.Message.Chat.ID)
}

func (h *Handler) onAnswer(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error) {
	ans, err := parseAnswerCallback(cd)
	if err != nil {
		return "", err
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	d, ok := h.practiceService.Current(userID)
	if !ok || d.Item.ID != ans.ItemID {
		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, emptyKeyboard()))
		return msgStaleExercise, nil
	}

	item := d.Item
	if ans.Gap >= len(item.Body.Gaps) || ans.Option >= len(item.Body.Gaps[ans.Gap].Options) {
		return "", errBadCallback
	}
	gap := item.Body.Gaps[ans.Gap]
	correct := item.CheckGap(ans.Gap, gap.Options[ans.Option])

	attempt, ok := h.attempts.Answer(userID, item.ID, ans.Gap, correct)
	if !ok {
		return msgAlreadyAnswered, nil
	}

	toast := answerToast(correct, gap)
	if len(attempt.Answered) < len(item.Body.Gaps) {
		h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, buildItemKeyboard(item, attempt.Answered)))
		return toast, nil
	}

	h.attempts.Delete(userID)
	return toast, h.finishItem(ctx, userID, chatID, msgID, item, attempt)
}

// finishItem records a completed exercise, shows the result in place and
// serves the next exercise.
func (h *Handler) finishItem(
	ctx context.Context,
	userID, chatID int64,
	msgID int,
	item entities.Item,
	attempt storage.Attempt,
) error {
	total := len(item.Body.Gaps)
	res, recErr := h.practiceService.Complete(ctx, userID, item.ID, attempt.Correct(), total, time.Since(attempt.StartedAt))

	streak := 0
	if recErr == nil {
		streak = res.StreakLength
	}

	edit := newEdit(chatID, msgID, formatResult(item, attempt, streak))
	kb := emptyKeyboard()
	edit.ReplyMarkup = &kb
	if err := h.send(edit); err != nil {
		return err
	}
	h.messages.Delete(userID)

	if recErr != nil {
		h.logger.Error("failed to record completion",
			zap.Int64("user_id", userID),
			zap.Int64("item_id", item.ID),
			zap.Error(recErr),
		)
		if err := h.send(newPlainMessage(chatID, msgCompletionNotSaved)); err != nil {
			return err
		}
	}

	return h.serveNext(userID)(ctx, chatID)
}

func (h *Handler) onReport(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error) {
	itemID, err := parseItemCallback(cd)
	if err != nil {
		return "", err
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	if err := h.reportService.Report(ctx, userID, itemID, "reported from chat"); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return msgStaleExercise, nil
		}
		return "", err
	}

	if d, ok := h.practiceService.Current(userID); ok && d.Item.ID == itemID {
		h.attempts.Delete(userID)
		h.clearLastKeyboard(userID)
		return msgReportThanks, h.serveNext(userID)(ctx, chatID)
	}

	h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, emptyKeyboard()))
	return msgReportThanks, nil
}

func (h *Handler) onReset(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) (string, error) {
	choice, err := singleParam(cd)
	if err != nil {
		return "", err
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch choice {
	case resetConfirm:
		h.endSession(userID)
		if err := h.resetService.ResetUser(ctx, userID); err != nil {
			return "", err
		}
		h.logger.Info("user account deleted", zap.Int64("user_id", userID))
		return "", h.send(newEdit(chatID, msgID, md(msgResetDone)))
	case resetCancel:
		return "", h.send(newEdit(chatID, msgID, md(msgResetCancelled)))
	default:
		return "", errBadCallback
	}
}

// endSession drops the live session so the next /practice starts from the
// current settings.
func (h *Handler) endSession(userID int64) {
	h.practiceService.Stop(userID)
	h.attempts.Delete(userID)
	h.clearLastKeyboard(userID)
}
