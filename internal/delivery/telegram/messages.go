// messages.go contains message templates and formatting functions for Telegram.

package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/storage"
)

// Error messages.
const (
	msgPracticeUnavailable = "Could not load an exercise. Please try again later."
	msgProgressUnavailable = "Could not load your progress. Please try again later."
	msgSettingsUnavailable = "Could not load your settings. Please try again later."
	msgCompletionNotSaved  = "Your answer was checked but progress could not be saved. It will not count towards your streak."
	msgInternalError       = "Something went wrong. Please try again later."
	msgUnknownCommand      = "Unknown command. See /help for the list of commands."
	msgNoSession           = "No active practice. Send /practice to start."
	msgStaleExercise       = "This exercise is no longer active."
	msgAlreadyAnswered     = "You already answered this gap."
	msgReportThanks        = "Thanks! The exercise was hidden and will be reviewed."
	msgPracticeStopped     = "Practice stopped. Send /practice to continue later."
	msgResetDone           = "Your account was deleted. Send any command to start over with default settings."
	msgResetCancelled      = "Reset cancelled."
)

// md escapes plain text for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

func italic(s string) string {
	return "_" + md(s) + "_"
}

// newMessage creates a message with MarkdownV2 parse mode.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

// newPlainMessage creates a plain message without MarkdownV2 parse mode.
func newPlainMessage(chatID int64, text string) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(chatID, text)
}

// newEdit creates an edit with MarkdownV2 parse mode.
func newEdit(chatID int64, msgID int, text string) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return edit
}

func welcomeMessage() string {
	var sb strings.Builder

	sb.WriteString(bold("Welcome to Grammar Practice Bot!"))
	sb.WriteString("\n\n")
	sb.WriteString(md("I serve short fill-in-the-gap exercises that follow your level and topic, " +
		"remember where you stopped in every grammar section and keep your daily streak."))
	sb.WriteString("\n\n")
	sb.WriteString(md("To get started:"))
	sb.WriteString("\n\n")
	sb.WriteString(md("1. Pick your level with /level (A1 by default)."))
	sb.WriteString("\n")
	sb.WriteString(md("2. Optionally focus on a topic with /topic."))
	sb.WriteString("\n")
	sb.WriteString(md("3. Send /practice and answer the gaps."))
	sb.WriteString("\n\n")
	sb.WriteString(md("Check /progress any time. /help lists every command."))

	return sb.String()
}

func helpMessage() string {
	var sb strings.Builder

	sb.WriteString(bold("Commands"))
	sb.WriteString("\n\n")
	for _, c := range botCommands {
		sb.WriteString(md(fmt.Sprintf("/%s - %s", c.Command, c.Description)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(md("When you finish a level, the next one starts automatically."))

	return sb.String()
}

// formatItem renders an exercise with numbered gaps.
func formatItem(item entities.Item, section string) string {
	var sb strings.Builder

	if item.IsFallback() {
		sb.WriteString(italic("You have practised everything available for now. Here is a warm-up:"))
	} else {
		sb.WriteString(bold(fmt.Sprintf("📘 %s · %s", section, item.Level)))
	}
	sb.WriteString("\n\n")
	sb.WriteString(md(numberGaps(item)))
	if len(item.Body.Gaps) > 1 {
		sb.WriteString("\n\n")
		sb.WriteString(italic("Answer every gap using the buttons below."))
	}

	return sb.String()
}

// formatResult renders a finished exercise with its answers filled in.
func formatResult(item entities.Item, attempt storage.Attempt, streak int) string {
	text := item.Body.Text
	for _, g := range item.Body.Gaps {
		text = strings.Replace(text, entities.GapMarker, "["+g.Answer+"]", 1)
	}

	var sb strings.Builder
	sb.WriteString(md(text))
	sb.WriteString("\n\n")

	total := len(item.Body.Gaps)
	correct := attempt.Correct()
	mark := "✅"
	if correct < total {
		mark = "📝"
	}
	sb.WriteString(md(fmt.Sprintf("%s %d/%d correct", mark, correct, total)))
	if streak > 0 {
		sb.WriteString(md(fmt.Sprintf("  🔥 %d-day streak", streak)))
	}

	return sb.String()
}

// numberGaps replaces gap markers with numbered blanks when the item has
// more than one gap.
func numberGaps(item entities.Item) string {
	if len(item.Body.Gaps) < 2 {
		return item.Body.Text
	}

	var sb strings.Builder
	rest := item.Body.Text
	for n := 1; ; n++ {
		i := strings.Index(rest, entities.GapMarker)
		if i < 0 {
			break
		}
		sb.WriteString(rest[:i])
		sb.WriteString(fmt.Sprintf("___(%d)", n))
		rest = rest[i+len(entities.GapMarker):]
	}
	sb.WriteString(rest)
	return sb.String()
}

// transitionMessage announces a change of level or topic, or returns "".
func transitionMessage(t entities.Transition, item entities.Item, section entities.GrammarSection) string {
	switch t {
	case entities.TransitionLevelUp:
		return bold(fmt.Sprintf("🎉 Level up! You moved on to %s.", item.Level))
	case entities.TransitionLevelChange:
		return md(fmt.Sprintf("🔀 Nothing left at your level, switching to %s for now.", item.Level))
	case entities.TransitionTopicChange:
		return md(fmt.Sprintf("🔀 Your topic is exhausted, moving on to %s.", section.Name))
	default:
		return ""
	}
}

func answerToast(correct bool, gap entities.Gap) string {
	if correct {
		return "✅ Correct!"
	}
	return "❌ Correct answer: " + gap.Answer
}

func formatLevelPrompt(current entities.Level) string {
	return md("Choose your level. Current: ") + bold(current.String())
}

func formatTopicPrompt(current entities.Topic) string {
	if current == "" {
		return md("Choose a topic to focus on. Current: ") + bold("any")
	}
	return md("Choose a topic to focus on. Current: ") + bold(string(current))
}

func resetPrompt() string {
	return bold("Reset progress?") + "\n\n" +
		md("This deletes your account with its settings, completion history, section progress and streak. It cannot be undone.")
}
