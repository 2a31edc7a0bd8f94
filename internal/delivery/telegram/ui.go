package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

// buildItemKeyboard builds one row of options per gap not yet answered, plus
// a report button for catalog items.
func buildItemKeyboard(item entities.Item, answered map[int]bool) tgbotapi.InlineKeyboardMarkup {
	numbered := len(item.Body.Gaps) > 1

	var rows [][]tgbotapi.InlineKeyboardButton
	for g, gap := range item.Body.Gaps {
		if _, done := answered[g]; done {
			continue
		}
		var row []tgbotapi.InlineKeyboardButton
		for o, option := range gap.Options {
			label := option
			if numbered {
				label = fmt.Sprintf("%d: %s", g+1, option)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, buildAnswerCallback(item.ID, g, o)))
		}
		rows = append(rows, row)
	}

	if !item.IsFallback() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Report a mistake", buildReportCallback(item.ID)),
		))
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// emptyKeyboard removes the inline keyboard of an edited message.
func emptyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

// buildLevelKeyboard builds keyboard for choosing a level, three per row.
func buildLevelKeyboard(current entities.Level) tgbotapi.InlineKeyboardMarkup {
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)
	for _, l := range entities.Levels {
		label := l.String()
		if l == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, buildLevelCallback(l.String())))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildTopicKeyboard builds keyboard for choosing a topic, two per row,
// followed by a button that clears the focus.
func buildTopicKeyboard(topics []entities.Topic, current entities.Topic) tgbotapi.InlineKeyboardMarkup {
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)
	for _, t := range topics {
		label := string(t)
		if t == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, buildTopicCallback(string(t))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	anyLabel := "🔀 Any topic"
	if current == "" {
		anyLabel = "✅ " + anyLabel
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(anyLabel, buildTopicCallback("")),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildResetKeyboard builds keyboard for the reset confirmation.
func buildResetKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Yes, reset", buildResetConfirmCallback()),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", buildResetCancelCallback()),
		),
	)
}
