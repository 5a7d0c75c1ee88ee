// Package scheduler runs the background jobs: hourly due-card reminders and
// the daily retention refresh.
package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/stats"
)

// Default quiet-hour bounds for reminders, overridable via
// NOTIFICATION_START_HOUR and NOTIFICATION_END_HOUR.
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Notifier delivers due-card reminders to users.
type Notifier interface {
	SendReminder(userID int64, dueCount int) error
}

// Scheduler manages the application's periodic jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	retention *stats.RetentionService
	users     *database.UserRepository
	progress  *database.ProgressRepository
}

// New creates a Scheduler; jobs run in UTC.
func New(notifier Notifier, retention *stats.RetentionService) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		retention: retention,
		users:     database.NewUserRepository(),
		progress:  database.NewProgressRepository(),
	}
}

// Start registers and launches all jobs without blocking.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.Every(1).Day().At("03:00").Do(s.refreshRetention)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders notifies every user with due cards, respecting the
// configured notification hours.
func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().Hour()
	startHour := hourFromEnv("NOTIFICATION_START_HOUR", DefaultNotificationStartHour)
	endHour := hourFromEnv("NOTIFICATION_END_HOUR", DefaultNotificationEndHour)
	if currentHour < startHour || currentHour > endHour {
		return
	}

	ctx := context.Background()
	userIDs, err := s.users.ListIDs(ctx, database.DB)
	if err != nil {
		log.Printf("scheduler: failed to list users: %v", err)
		return
	}

	now := time.Now()
	for _, userID := range userIDs {
		count, err := s.progress.CountDue(ctx, database.DB, userID, now)
		if err != nil {
			log.Printf("scheduler: failed to count due cards for user %d: %v", userID, err)
			continue
		}
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminder(userID, count); err != nil {
			log.Printf("scheduler: failed to send reminder to user %d: %v", userID, err)
		}
	}
}

// refreshRetention recomputes stale cached retention values.
func (s *Scheduler) refreshRetention() {
	if err := s.retention.RefreshStale(context.Background()); err != nil {
		log.Printf("scheduler: failed to refresh retention: %v", err)
	}
}

func hourFromEnv(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return fallback
}
