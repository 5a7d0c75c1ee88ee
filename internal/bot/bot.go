// Package bot is the Telegram front of the learning engine: it presents due
// cards, collects ratings and free-text answers, and shows progress.
package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/export"
	"github.com/example/lexibot/internal/grading"
	"github.com/example/lexibot/internal/levels"
	"github.com/example/lexibot/internal/quiz"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/internal/stats"
	"github.com/example/lexibot/pkg/models"
)

// session tracks one user's in-flight card between messages.
type session struct {
	card           *models.Flashcard
	side           models.CardSide
	awaitingAnswer bool
	fuzzy          bool
	quiz           *quiz.Question
}

// Bot wires the Telegram API to the review engine and its services.
type Bot struct {
	api      *tgbotapi.BotAPI
	token    string
	engine   *srs.Engine
	grader   *grading.Grader
	quizzes  *quiz.Service
	levels   *levels.Service
	streaks  *stats.StreakService
	exporter *export.Exporter

	users       *database.UserRepository
	cards       *database.FlashcardRepository
	words       *database.WordRepository
	progress    *database.ProgressRepository
	collections *database.CollectionRepository

	mu       sync.Mutex
	sessions map[int64]*session
}

// New creates a Bot from TELEGRAM_BOT_TOKEN and the given services.
func New(engine *srs.Engine, grader *grading.Grader, quizzes *quiz.Service, levelSvc *levels.Service, streaks *stats.StreakService, exporter *export.Exporter) (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if database.DB == nil {
		return nil, fmt.Errorf("database connection is not established")
	}
	return &Bot{
		token:       token,
		engine:      engine,
		grader:      grader,
		quizzes:     quizzes,
		levels:      levelSvc,
		streaks:     streaks,
		exporter:    exporter,
		users:       database.NewUserRepository(),
		cards:       database.NewFlashcardRepository(),
		words:       database.NewWordRepository(),
		progress:    database.NewProgressRepository(),
		collections: database.NewCollectionRepository(),
		sessions:    make(map[int64]*session),
	}, nil
}

// Start connects to Telegram and processes updates until the channel closes.
func (b *Bot) Start() error {
	api, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %v", err)
	}
	b.api = api
	log.Printf("Authorized on account %s", api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for update := range updates {
		go b.handleUpdate(update)
	}
	return nil
}

// Stop shuts down the update channel.
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// SendReminder notifies a user about due cards. Implements the scheduler's
// Notifier.
func (b *Bot) SendReminder(userID int64, dueCount int) error {
	user, err := b.users.GetByID(context.Background(), database.DB, userID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("You have %d cards due for review. Send /learn to start.", dueCount)
	_, err = b.api.Send(tgbotapi.NewMessage(user.TelegramID, text))
	return err
}

// handleUpdate routes one incoming update.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bot: panic handling update: %v", r)
		}
	}()

	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil:
		b.handleText(update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	}
}

// sessionFor returns the user's session, creating it if needed.
func (b *Bot) sessionFor(userID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if !ok {
		s = &session{}
		b.sessions[userID] = s
	}
	return s
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("bot: failed to send message: %v", err)
	}
}
