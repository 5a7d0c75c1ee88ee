package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

const welcomeText = `Welcome! I schedule your flashcards so you review them right before you forget.

/collections — list the collections you can study
/study <collection> — start learning a collection
/learn — review the next due card
/quiz — jump to the next due quiz card
/stats — streaks and points
/levels <collection> — level progress
/export — download your progress as a spreadsheet
/snooze — push the current card back 6 hours
/reset — wipe the current card's history`

// ratingKeyboard offers the four ratings for self-graded cards.
var ratingKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Again", "rate:1"),
		tgbotapi.NewInlineKeyboardButtonData("Hard", "rate:2"),
		tgbotapi.NewInlineKeyboardButtonData("Good", "rate:3"),
		tgbotapi.NewInlineKeyboardButtonData("Easy", "rate:4"),
	),
)

// handleCommand dispatches one slash command.
func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	ctx := context.Background()
	user, err := b.users.GetOrCreateByTelegramID(ctx, database.DB, msg.From.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("bot: failed to resolve user: %v", err)
		b.send(msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.send(msg.Chat.ID, welcomeText)
	case "collections":
		b.handleCollections(ctx, msg.Chat.ID, user)
	case "study":
		b.handleStudy(ctx, msg, user)
	case "learn":
		b.nextCard(ctx, msg.Chat.ID, user)
	case "quiz":
		b.nextQuizCard(ctx, msg.Chat.ID, user)
	case "stats":
		b.handleStats(ctx, msg.Chat.ID, user)
	case "levels":
		b.handleLevels(ctx, msg, user)
	case "export":
		b.handleExport(ctx, msg.Chat.ID, user)
	case "snooze":
		b.handleSnooze(ctx, msg.Chat.ID, user)
	case "reset":
		b.handleReset(ctx, msg.Chat.ID, user)
	default:
		b.send(msg.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

// handleText grades a typed answer for the card currently awaiting one.
func (b *Bot) handleText(msg *tgbotapi.Message) {
	ctx := context.Background()
	user, err := b.users.GetOrCreateByTelegramID(ctx, database.DB, msg.From.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("bot: failed to resolve user: %v", err)
		return
	}

	s := b.sessionFor(user.ID)
	if s.quiz != nil {
		b.send(msg.Chat.ID, "Pick one of the options above.")
		return
	}
	if !s.awaitingAnswer || s.card == nil {
		b.send(msg.Chat.ID, "Send /learn to get your next card.")
		return
	}

	var reply string
	if s.fuzzy {
		result, err := b.grader.GradeFuzzy(ctx, user.ID, s.card.ID, s.side, msg.Text, nil)
		if err != nil {
			b.reportError(msg.Chat.ID, err)
			return
		}
		if result.Correct {
			reply = fmt.Sprintf("Correct! (similarity %.0f%%)", result.Similarity*100)
		} else {
			reply = fmt.Sprintf("Not quite (similarity %.0f%%). It was: %s", result.Similarity*100, result.Expected)
		}
	} else {
		result, err := b.grader.GradeExact(ctx, user.ID, s.card.ID, s.side, msg.Text, nil)
		if err != nil {
			b.reportError(msg.Chat.ID, err)
			return
		}
		if result.Correct {
			reply = "Correct!"
		} else {
			// No review scheduled on a miss; the card stays due.
			reply = fmt.Sprintf("Not quite. It was: %s\nRate it yourself or try /learn again.", result.Expected)
		}
	}
	s.awaitingAnswer = false
	s.card = nil
	b.send(msg.Chat.ID, reply)
	b.nextCard(ctx, msg.Chat.ID, user)
}

// handleCallback processes rating and quiz-option button presses.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("bot: failed to ack callback: %v", err)
	}

	ctx := context.Background()
	user, err := b.users.GetOrCreateByTelegramID(ctx, database.DB, cb.From.ID, cb.From.UserName, cb.From.FirstName)
	if err != nil {
		log.Printf("bot: failed to resolve user: %v", err)
		return
	}
	chatID := cb.Message.Chat.ID
	s := b.sessionFor(user.ID)

	switch {
	case cb.Data == "show":
		b.showAnswer(ctx, chatID, s)
	case strings.HasPrefix(cb.Data, "rate:"):
		b.handleRating(ctx, chatID, user, s, strings.TrimPrefix(cb.Data, "rate:"))
	case strings.HasPrefix(cb.Data, "quiz:"):
		b.handleQuizPick(ctx, chatID, user, s, strings.TrimPrefix(cb.Data, "quiz:"))
	}
}

func (b *Bot) showAnswer(ctx context.Context, chatID int64, s *session) {
	if s.card == nil {
		b.send(chatID, "Send /learn to get your next card.")
		return
	}
	answer, err := b.answerText(ctx, s.card, s.side)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, answer)
	msg.ReplyMarkup = ratingKeyboard
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: failed to send answer: %v", err)
	}
}

func (b *Bot) handleRating(ctx context.Context, chatID int64, user *models.User, s *session, data string) {
	if s.card == nil {
		b.send(chatID, "Send /learn to get your next card.")
		return
	}
	rating, err := strconv.Atoi(data)
	if err != nil {
		return
	}
	result, err := b.engine.Review(ctx, srs.ReviewRequest{
		UserID:      user.ID,
		FlashcardID: s.card.ID,
		Side:        s.side,
		Rating:      models.Rating(rating),
	})
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	s.card = nil
	s.awaitingAnswer = false

	text := fmt.Sprintf("Scheduled in %d day(s).", result.Progress.IntervalDays)
	if n := len(result.AutoProgressed); n > 0 {
		text += fmt.Sprintf(" %d related card(s) advanced with you.", n)
	}
	b.send(chatID, text)
	b.nextCard(ctx, chatID, user)
}

func (b *Bot) handleQuizPick(ctx context.Context, chatID int64, user *models.User, s *session, data string) {
	if s.quiz == nil {
		b.send(chatID, "Send /quiz to get a question.")
		return
	}
	idx, err := strconv.Atoi(data)
	if err != nil || idx < 0 || idx >= len(s.quiz.Options) {
		return
	}
	q := s.quiz
	s.quiz = nil

	result, err := b.quizzes.Submit(ctx, user.ID, q.FlashcardID, q.Side, q.Options[idx], q.Options)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	if result.Correct {
		b.send(chatID, "Correct!")
	} else {
		b.send(chatID, fmt.Sprintf("Wrong — it was: %s", result.Answer))
	}
	b.nextCard(ctx, chatID, user)
}

// handleCollections lists the collections the user can study.
func (b *Bot) handleCollections(ctx context.Context, chatID int64, user *models.User) {
	cols, err := b.collections.ListAccessible(ctx, database.DB, user.ID)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	if len(cols) == 0 {
		b.send(chatID, "No collections available yet.")
		return
	}
	var sb strings.Builder
	for _, c := range cols {
		visibility := "private"
		if c.IsPublic {
			visibility = "public"
		}
		fmt.Fprintf(&sb, "%d — %s (%s)\n", c.ID, c.Name, visibility)
	}
	sb.WriteString("\nSend /study <id> to start one.")
	b.send(chatID, sb.String())
}

// handleStudy initializes progress for every card of a collection.
func (b *Bot) handleStudy(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	collectionID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.send(msg.Chat.ID, "Usage: /study <collection id>")
		return
	}
	if err := b.engine.StartCollection(ctx, user.ID, collectionID); err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	b.send(msg.Chat.ID, "Collection added. Send /learn to start reviewing.")
}

// nextCard fetches the next due card and presents it according to its
// direction.
func (b *Bot) nextCard(ctx context.Context, chatID int64, user *models.User) {
	due, err := b.progress.ListDue(ctx, database.DB, user.ID, 1, time.Now())
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	if len(due) == 0 {
		b.send(chatID, "Nothing due right now. Well done!")
		return
	}
	b.presentCard(ctx, chatID, user, due[0].FlashcardID, due[0].Side)
}

// nextQuizCard finds the next due quiz-direction card.
func (b *Bot) nextQuizCard(ctx context.Context, chatID int64, user *models.User) {
	due, err := b.progress.ListDue(ctx, database.DB, user.ID, 50, time.Now())
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	for i := range due {
		if due[i].Direction.IsQuiz() {
			b.presentCard(ctx, chatID, user, due[i].FlashcardID, due[i].Side)
			return
		}
	}
	b.send(chatID, "No quiz cards due right now.")
}

func (b *Bot) presentCard(ctx context.Context, chatID int64, user *models.User, flashcardID int64, side models.CardSide) {
	card, err := b.cards.GetByID(ctx, database.DB, flashcardID)
	if err != nil {
		b.reportError(chatID, err)
		return
	}

	s := b.sessionFor(user.ID)
	s.card = card
	s.side = side
	s.quiz = nil
	s.awaitingAnswer = false

	if card.Direction.IsQuiz() {
		q, err := b.quizzes.BuildQuestion(ctx, user.ID, card.ID)
		if err != nil {
			b.reportError(chatID, err)
			return
		}
		s.card = nil
		s.quiz = q

		var rows [][]tgbotapi.InlineKeyboardButton
		for i, opt := range q.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(opt, fmt.Sprintf("quiz:%d", i)),
			))
		}
		msg := tgbotapi.NewMessage(chatID, q.Prompt)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		if _, err := b.api.Send(msg); err != nil {
			log.Printf("bot: failed to send question: %v", err)
		}
		return
	}

	prompt, err := b.promptText(ctx, card, side)
	if err != nil {
		b.reportError(chatID, err)
		return
	}

	if card.Direction.IsFillIn() {
		s.awaitingAnswer = true
		s.fuzzy = true
		b.send(chatID, prompt+"\n\nType your answer:")
		return
	}

	s.awaitingAnswer = true
	s.fuzzy = false
	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Show answer", "show"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: failed to send card: %v", err)
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, user *models.User) {
	summary, err := b.streaks.Summarize(ctx, user.ID, 7)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	due, err := b.progress.CountDue(ctx, database.DB, user.ID, time.Now())
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Due now: %d\n", due)
	fmt.Fprintf(&sb, "Total reviews: %d\n", summary.TotalReviews)
	fmt.Fprintf(&sb, "Current streak: %d day(s)\n", summary.CurrentStreak)
	fmt.Fprintf(&sb, "Longest streak: %d day(s)\n", summary.LongestStreak)
	fmt.Fprintf(&sb, "Retention target: %.0f%%\n\nLast 7 days:\n", summary.Retention*100)
	for _, d := range summary.Daily {
		fmt.Fprintf(&sb, "%s — %d points\n", d.Date.Format("Mon 02 Jan"), d.Points)
	}
	b.send(chatID, sb.String())
}

func (b *Bot) handleLevels(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	collectionID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.send(msg.Chat.ID, "Usage: /levels <collection id>")
		return
	}
	overviews, err := b.levels.ListOverviews(ctx, user.ID, collectionID)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	if len(overviews) == 0 {
		b.send(msg.Chat.ID, "This collection has no levels.")
		return
	}
	var sb strings.Builder
	for _, o := range overviews {
		state := "locked"
		switch {
		case o.IsCompleted:
			state = "completed"
		case o.IsUnlocked:
			state = "unlocked"
		}
		fmt.Fprintf(&sb, "%s — %s, %d/%d cards done\n", o.Level.Name, state, o.CardsCompleted, o.CardCount)
		for _, p := range o.Prerequisites {
			mark := "✗"
			if p.IsCompleted {
				mark = "✓"
			}
			fmt.Fprintf(&sb, "  requires %s %s\n", p.Name, mark)
		}
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, user *models.User) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("progress_%d.xlsx", user.ID))
	if err := b.exporter.BuildWorkbook(ctx, user.ID, path); err != nil {
		b.reportError(chatID, err)
		return
	}
	defer os.Remove(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = "Your progress report"
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("bot: failed to send export: %v", err)
		b.send(chatID, "Could not send the report, please try again.")
	}
}

func (b *Bot) handleSnooze(ctx context.Context, chatID int64, user *models.User) {
	s := b.sessionFor(user.ID)
	if s.card == nil {
		b.send(chatID, "Open a card with /learn first, then /snooze it.")
		return
	}
	if err := b.progress.Snooze(ctx, user.ID, s.card.ID, time.Now()); err != nil {
		b.reportError(chatID, err)
		return
	}
	s.card = nil
	s.awaitingAnswer = false
	b.send(chatID, "Snoozed for 6 hours.")
	b.nextCard(ctx, chatID, user)
}

func (b *Bot) handleReset(ctx context.Context, chatID int64, user *models.User) {
	s := b.sessionFor(user.ID)
	if s.card == nil {
		b.send(chatID, "Open a card with /learn first, then /reset it.")
		return
	}
	if err := b.progress.ResetToNew(ctx, user.ID, s.card.ID, time.Now()); err != nil {
		b.reportError(chatID, err)
		return
	}
	s.card = nil
	s.awaitingAnswer = false
	b.send(chatID, "Card history wiped; it starts fresh.")
}

// promptText is what the user sees; answerText is what they must produce.
func (b *Bot) promptText(ctx context.Context, card *models.Flashcard, side models.CardSide) (string, error) {
	front, back, err := b.cardTexts(ctx, card)
	if err != nil {
		return "", err
	}
	if side == models.SideReverse {
		return back, nil
	}
	return front, nil
}

func (b *Bot) answerText(ctx context.Context, card *models.Flashcard, side models.CardSide) (string, error) {
	front, back, err := b.cardTexts(ctx, card)
	if err != nil {
		return "", err
	}
	if side == models.SideReverse {
		return front, nil
	}
	return back, nil
}

func (b *Bot) cardTexts(ctx context.Context, card *models.Flashcard) (front, back string, err error) {
	if card.WordID != nil {
		word, err := b.words.GetByID(ctx, database.DB, *card.WordID)
		if err != nil {
			return "", "", err
		}
		return word.Word, word.Definition, nil
	}
	return card.FrontText, card.BackText, nil
}

// reportError maps the service error taxonomy to user-facing messages.
func (b *Bot) reportError(chatID int64, err error) {
	switch {
	case errors.Is(err, srs.ErrAccessDenied):
		b.send(chatID, "You don't have access to that yet.")
	case errors.Is(err, database.ErrNotFound):
		b.send(chatID, "I couldn't find that.")
	case errors.Is(err, srs.ErrInvalidState), errors.Is(err, srs.ErrInvalidArgument):
		b.send(chatID, "That card can't be answered this way.")
	default:
		log.Printf("bot: %v", err)
		b.send(chatID, "Something went wrong, please try again.")
	}
}
