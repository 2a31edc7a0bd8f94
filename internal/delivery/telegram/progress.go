package telegram

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

const progressBarLength = 10

// handleProgress displays user progress.
func (h *Handler) handleProgress(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		h.logger.Debug("rendering progress", zap.Int64("user_id", userID))

		summary, err := h.progressService.Summary(ctx, userID)
		if err != nil {
			h.logger.Error("failed to render progress",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return h.send(newPlainMessage(chatID, msgProgressUnavailable))
		}

		return h.send(newMessage(chatID, renderProgress(summary)))
	}
}

func renderProgress(summary *entities.ProgressSummary) string {
	agg := summary.Aggregate

	var sb strings.Builder
	sb.WriteString(bold("📊 Your progress"))
	sb.WriteString("\n\n")
	sb.WriteString(md(fmt.Sprintf("✅ Completed: %d", agg.TotalCompleted)))
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("🎯 Accuracy: %.1f%%", agg.Accuracy())))
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("🔥 Streak: %d (best %d)", agg.CurrentStreak, agg.LongestStreak)))
	sb.WriteString("\n\n")

	if len(summary.Sections) == 0 {
		sb.WriteString(md("No exercises yet. Send /practice to start."))
		return sb.String()
	}

	for _, s := range summary.Sections {
		done := 0
		if s.Progress != nil {
			done = min(s.Progress.LastCompletedOrder, s.TotalItems)
		}
		sb.WriteString(bold(fmt.Sprintf("%s · %s", s.Section.Level, s.Section.Name)))
		sb.WriteString("\n")
		sb.WriteString(md(fmt.Sprintf("%s %d/%d", buildProgressBar(done, s.TotalItems, progressBarLength), done, s.TotalItems)))
		sb.WriteString("\n")
	}

	return sb.String()
}

// buildProgressBar creates ASCII progress bar.
func buildProgressBar(current, total, length int) string {
	if total == 0 {
		return fmt.Sprintf("[%s]", strings.Repeat("░", length))
	}

	filled := int(float64(current) / float64(total) * float64(length))
	filled = max(0, min(filled, length))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
	return fmt.Sprintf("[%s]", bar)
}
