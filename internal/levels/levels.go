// Package levels implements the prerequisite gate and per-level progress
// aggregation: a level unlocks once every direct prerequisite is completed,
// and completes once enough cards are graduated at a sufficient success rate.
package levels

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

// Prerequisite is one prerequisite edge in a level overview.
type Prerequisite struct {
	LevelID     int64  `json:"level_id"`
	Name        string `json:"name"`
	IsCompleted bool   `json:"is_completed"`
}

// Overview is the per-user aggregate view of one level.
type Overview struct {
	Level          models.Level   `json:"level"`
	CardCount      int            `json:"card_count"`
	Prerequisites  []Prerequisite `json:"prerequisites"`
	IsUnlocked     bool           `json:"is_unlocked"`
	IsStarted      bool           `json:"is_started"`
	IsCompleted    bool           `json:"is_completed"`
	CardsCompleted int            `json:"cards_completed"`
	CorrectAnswers int            `json:"correct_answers"`
	TotalAnswers   int            `json:"total_answers"`
}

// Service answers unlock checks and keeps per-level counters current.
type Service struct {
	levels   *database.LevelRepository
	progress *database.ProgressRepository
	now      func() time.Time
}

// NewService creates a level Service on the shared database connection.
func NewService() *Service {
	return &Service{
		levels:   database.NewLevelRepository(),
		progress: database.NewProgressRepository(),
		now:      time.Now,
	}
}

// IsUnlocked reports whether every direct prerequisite of the level is
// completed for the user. A missing progress row counts as not completed.
func (s *Service) IsUnlocked(ctx context.Context, userID, levelID int64) (bool, error) {
	prereqs, err := s.levels.Prerequisites(ctx, database.DB, levelID)
	if err != nil {
		return false, err
	}
	for _, p := range prereqs {
		done, err := s.isCompleted(ctx, database.DB, userID, p.ID)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
	}
	return true, nil
}

// RecordAnswer updates the user's counters for the card's level inside the
// enclosing review transaction and marks the level completed once its
// thresholds are met.
func (s *Service) RecordAnswer(ctx context.Context, q database.Queryer, userID int64, card *models.Flashcard, correct bool, now time.Time) error {
	if card.LevelID == nil {
		return nil
	}
	levelID := *card.LevelID

	p, err := s.levels.GetUserProgress(ctx, q, userID, levelID)
	if errors.Is(err, database.ErrNotFound) {
		p = &models.UserLevelProgress{UserID: userID, LevelID: levelID}
	} else if err != nil {
		return err
	}

	p.TotalAnswers++
	if correct {
		p.CorrectAnswers++
	}
	activity := now
	p.LastActivityAt = &activity
	if p.UnlockedAt == nil {
		p.UnlockedAt = &activity
	}

	completed, err := s.progress.CountCompletedInLevel(ctx, q, userID, levelID)
	if err != nil {
		return err
	}
	p.CardsCompleted = completed

	// Completion is re-evaluated on every answer: a level completes when the
	// thresholds hold and reopens when they stop holding. If the thresholds
	// cannot be read the flag is left as it was.
	if level, err := s.levels.GetByID(ctx, q, levelID); err == nil {
		if meetsThresholds(level, p) {
			if p.CompletedAt == nil {
				done := now
				p.CompletedAt = &done
			}
		} else {
			p.CompletedAt = nil
		}
	}

	return s.levels.UpsertUserProgress(ctx, q, p)
}

// ListOverviews returns the aggregate view of every level in a collection
// for one user, in position order.
func (s *Service) ListOverviews(ctx context.Context, userID, collectionID int64) ([]Overview, error) {
	all, err := s.levels.ListByCollection(ctx, database.DB, collectionID)
	if err != nil {
		return nil, err
	}
	overviews := make([]Overview, 0, len(all))
	for i := range all {
		o, err := s.Overview(ctx, userID, all[i].ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, *o)
	}
	return overviews, nil
}

// Overview builds the aggregate view of one level for one user.
func (s *Service) Overview(ctx context.Context, userID, levelID int64) (*Overview, error) {
	level, err := s.levels.GetByID(ctx, database.DB, levelID)
	if err != nil {
		return nil, err
	}
	count, err := s.levels.CountItems(ctx, database.DB, levelID)
	if err != nil {
		return nil, err
	}

	prereqLevels, err := s.levels.Prerequisites(ctx, database.DB, levelID)
	if err != nil {
		return nil, err
	}
	prereqs := make([]Prerequisite, 0, len(prereqLevels))
	unlocked := true
	for _, pl := range prereqLevels {
		done, err := s.isCompleted(ctx, database.DB, userID, pl.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			unlocked = false
		}
		prereqs = append(prereqs, Prerequisite{LevelID: pl.ID, Name: pl.Name, IsCompleted: done})
	}

	o := &Overview{
		Level:         *level,
		CardCount:     count,
		Prerequisites: prereqs,
		IsUnlocked:    unlocked,
	}
	p, err := s.levels.GetUserProgress(ctx, database.DB, userID, levelID)
	if errors.Is(err, database.ErrNotFound) {
		return o, nil
	}
	if err != nil {
		return nil, err
	}
	o.IsStarted = p.IsStarted()
	o.IsCompleted = p.CompletedAt != nil
	o.CardsCompleted = p.CardsCompleted
	o.CorrectAnswers = p.CorrectAnswers
	o.TotalAnswers = p.TotalAnswers
	return o, nil
}

// isCompleted reports whether the user has a completed_at for the level.
func (s *Service) isCompleted(ctx context.Context, q database.Queryer, userID, levelID int64) (bool, error) {
	p, err := s.levels.GetUserProgress(ctx, q, userID, levelID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.CompletedAt != nil, nil
}

// meetsThresholds checks the level's completion criteria against the current
// counters.
func meetsThresholds(level *models.Level, p *models.UserLevelProgress) bool {
	if p.CardsCompleted < level.MinCards {
		return false
	}
	if p.TotalAnswers == 0 {
		return false
	}
	rate := float64(p.CorrectAnswers) / float64(p.TotalAnswers)
	return rate >= level.MinSuccessRate
}
