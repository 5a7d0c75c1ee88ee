// Package stats aggregates a user's review history into daily points and
// streaks, and maintains the adaptively estimated retention target.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

// ratingWeights scores one review event by its rating for daily points.
var ratingWeights = map[models.Rating]int{
	models.RatingAgain: 1,
	models.RatingHard:  2,
	models.RatingGood:  3,
	models.RatingEasy:  5,
}

// DailyPoints is one calendar day's point total.
type DailyPoints struct {
	Date   time.Time `json:"date"`
	Points int       `json:"points"`
}

// Summary is the per-user analytics view shown to the client.
type Summary struct {
	TotalReviews  int           `json:"total_reviews"`
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`
	Daily         []DailyPoints `json:"daily"`
	Retention     float64       `json:"retention"`
}

// StreakService computes point and streak aggregates from review events.
type StreakService struct {
	logs      *database.ReviewLogRepository
	retention *RetentionService
	now       func() time.Time
}

// NewStreakService creates a StreakService on the shared connection.
func NewStreakService(retention *RetentionService) *StreakService {
	return &StreakService{
		logs:      database.NewReviewLogRepository(),
		retention: retention,
		now:       time.Now,
	}
}

// Summarize builds the full analytics summary for a user over a trailing
// window of calendar days.
func (s *StreakService) Summarize(ctx context.Context, userID int64, windowDays int) (*Summary, error) {
	events, err := s.logs.ListByUser(ctx, database.DB, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pointsByDay := dailyPointTotals(events)

	daily := make([]DailyPoints, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		day := truncateDay(now.AddDate(0, 0, -i))
		daily = append(daily, DailyPoints{Date: day, Points: pointsByDay[day]})
	}

	return &Summary{
		TotalReviews:  len(events),
		CurrentStreak: currentStreak(pointsByDay, now),
		LongestStreak: longestStreak(pointsByDay),
		Daily:         daily,
		Retention:     s.retention.DesiredRetention(ctx, userID),
	}, nil
}

// dailyPointTotals sums rating weights per calendar day of the event's
// review time.
func dailyPointTotals(events []database.UserEvent) map[time.Time]int {
	totals := make(map[time.Time]int)
	for _, e := range events {
		totals[truncateDay(e.ReviewedAt)] += ratingWeights[e.Rating]
	}
	return totals
}

// currentStreak counts consecutive days with points walking backward from
// today; the first day without points ends the streak.
func currentStreak(pointsByDay map[time.Time]int, now time.Time) int {
	streak := 0
	for day := truncateDay(now); pointsByDay[day] > 0; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// longestStreak finds the largest run of consecutive calendar days that all
// have points.
func longestStreak(pointsByDay map[time.Time]int) int {
	days := make([]time.Time, 0, len(pointsByDay))
	for day, points := range pointsByDay {
		if points > 0 {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
