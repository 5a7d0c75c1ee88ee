package srs

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

// RetentionSource supplies the desired retention target for a user. It never
// fails; implementations fall back to DefaultRetention.
type RetentionSource interface {
	DesiredRetention(ctx context.Context, userID int64) float64
}

// LevelService is the subset of the level layer the engine needs: the unlock
// gate checked before a review, and per-answer accounting inside it.
type LevelService interface {
	IsUnlocked(ctx context.Context, userID, levelID int64) (bool, error)
	RecordAnswer(ctx context.Context, q database.Queryer, userID int64, card *models.Flashcard, correct bool, now time.Time) error
}

// ReviewRequest carries one graded answer on one side of a card.
type ReviewRequest struct {
	UserID      int64
	FlashcardID int64
	Side        models.CardSide
	Rating      models.Rating
	DurationMs  *int
}

// ReviewResult reports the applied review: the updated progress row, the
// logged event, and the IDs of any cards advanced by auto-progression.
type ReviewResult struct {
	Progress       models.Progress
	Log            models.ReviewLog
	AutoProgressed []int64
}

// Engine applies reviews: it validates the request, gates access, computes
// candidate next states and persists the chosen outcome atomically.
type Engine struct {
	progress    *database.ProgressRepository
	logs        *database.ReviewLogRepository
	cards       *database.FlashcardRepository
	collections *database.CollectionRepository
	words       *database.WordRepository
	memory      *MemoryModel
	retention   RetentionSource
	levels      LevelService
	now         func() time.Time
}

// NewEngine creates an Engine wired to the shared database connection.
func NewEngine(retention RetentionSource, levels LevelService) *Engine {
	return &Engine{
		progress:    database.NewProgressRepository(),
		logs:        database.NewReviewLogRepository(),
		cards:       database.NewFlashcardRepository(),
		collections: database.NewCollectionRepository(),
		words:       database.NewWordRepository(),
		memory:      NewMemoryModel(),
		retention:   retention,
		levels:      levels,
		now:         time.Now,
	}
}

// NextStatus returns the learning status after grading with the given rating.
// Again always demotes to learning, good and easy advance one step, hard
// leaves the status unchanged. Graduated cards stay graduated on success.
func NextStatus(current models.ProgressStatus, rating models.Rating) models.ProgressStatus {
	if current == "" {
		current = models.StatusNew
	}
	switch {
	case rating == models.RatingAgain:
		return models.StatusLearning
	case rating >= models.RatingGood:
		switch current {
		case models.StatusNew:
			return models.StatusLearning
		case models.StatusLearning:
			return models.StatusReview
		case models.StatusReview, models.StatusGraduated:
			return models.StatusGraduated
		}
	}
	return current
}

// Review validates and applies a single graded answer. On success (rating
// good or easy) it also runs one round of auto-progression for cards whose
// source text mentions the reviewed word.
func (e *Engine) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if !req.Rating.IsValid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "rating %d", req.Rating)
	}

	card, err := e.cards.GetByID(ctx, database.DB, req.FlashcardID)
	if err != nil {
		return nil, err
	}
	if card.Direction.IsInformational() {
		return nil, errors.Wrapf(ErrInvalidState, "flashcard %d is informational", card.ID)
	}
	if !card.Direction.HasSide(req.Side) {
		return nil, errors.Wrapf(ErrInvalidArgument, "side %q not tracked for direction %q", req.Side, card.Direction)
	}

	if err := e.checkAccess(ctx, req.UserID, card); err != nil {
		return nil, err
	}

	desiredRetention := e.retention.DesiredRetention(ctx, req.UserID)
	now := e.now()

	var result *ReviewResult
	err = database.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := e.applyReview(ctx, tx, req.UserID, card, req.Side, req.Rating, desiredRetention, req.DurationMs, now)
		if err != nil {
			return err
		}
		if req.Rating >= models.RatingGood && card.WordID != nil {
			ids, err := e.autoProgress(ctx, tx, req.UserID, card, req.Side, desiredRetention, now)
			if err != nil {
				return err
			}
			res.AutoProgressed = ids
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Preview returns the candidate outcomes of reviewing a card side with each
// rating, without persisting anything.
func (e *Engine) Preview(ctx context.Context, userID, flashcardID int64, side models.CardSide) (Candidates, error) {
	card, err := e.cards.GetByID(ctx, database.DB, flashcardID)
	if err != nil {
		return nil, err
	}
	if card.Direction.IsInformational() {
		return nil, errors.Wrapf(ErrInvalidState, "flashcard %d is informational", card.ID)
	}
	if !card.Direction.HasSide(side) {
		return nil, errors.Wrapf(ErrInvalidArgument, "side %q not tracked for direction %q", side, card.Direction)
	}
	if err := e.checkAccess(ctx, userID, card); err != nil {
		return nil, err
	}

	desiredRetention := e.retention.DesiredRetention(ctx, userID)
	now := e.now()

	var current *MemoryState
	elapsed := 0
	p, err := e.progress.GetActive(ctx, database.DB, userID, flashcardID, side)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// First review: bootstrap candidates.
	case err != nil:
		return nil, err
	default:
		if p.HasMemoryState() {
			current = &MemoryState{Stability: p.Stability, Difficulty: p.Difficulty}
		}
		elapsed = elapsedDays(p.LastReviewedAt, now)
	}
	return e.memory.NextStates(current, desiredRetention, elapsed), nil
}

// StartCollection creates initial progress rows for every card in a
// collection the user can access. Already-tracked sides are left alone.
func (e *Engine) StartCollection(ctx context.Context, userID, collectionID int64) error {
	col, err := e.collections.GetByID(ctx, database.DB, collectionID)
	if err != nil {
		return err
	}
	if !col.IsPublic && col.OwnerID != userID {
		return errors.Wrapf(ErrAccessDenied, "collection %d", collectionID)
	}
	cards, err := e.cards.ListByCollection(ctx, database.DB, collectionID)
	if err != nil {
		return err
	}
	now := e.now()
	return database.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := range cards {
			if err := e.progress.InitializeSides(ctx, tx, userID, &cards[i], now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Authorize checks that the user may study the card: its collection is
// public or owned, and its level, if any, is unlocked. Callers that hand out
// card content without going through Review must gate on this first.
func (e *Engine) Authorize(ctx context.Context, userID int64, card *models.Flashcard) error {
	return e.checkAccess(ctx, userID, card)
}

// checkAccess enforces collection visibility and the level unlock gate.
func (e *Engine) checkAccess(ctx context.Context, userID int64, card *models.Flashcard) error {
	col, err := e.collections.GetByID(ctx, database.DB, card.CollectionID)
	if err != nil {
		return err
	}
	if !col.IsPublic && col.OwnerID != userID {
		return errors.Wrapf(ErrAccessDenied, "collection %d", col.ID)
	}
	if card.LevelID != nil {
		unlocked, err := e.levels.IsUnlocked(ctx, userID, *card.LevelID)
		if err != nil {
			return err
		}
		if !unlocked {
			return errors.Wrapf(ErrAccessDenied, "level %d is locked", *card.LevelID)
		}
	}
	return nil
}

// applyReview loads or creates the progress row, picks the candidate for the
// given rating and persists the new state together with its review event.
func (e *Engine) applyReview(ctx context.Context, tx *sqlx.Tx, userID int64, card *models.Flashcard, side models.CardSide, rating models.Rating, desiredRetention float64, durationMs *int, now time.Time) (*ReviewResult, error) {
	p, err := e.progress.GetActive(ctx, tx, userID, card.ID, side)
	if errors.Is(err, database.ErrNotFound) {
		p = &models.Progress{
			UserID:      userID,
			FlashcardID: card.ID,
			Side:        side,
			Status:      models.StatusNew,
		}
	} else if err != nil {
		return nil, err
	}

	elapsed := elapsedDays(p.LastReviewedAt, now)
	var current *MemoryState
	if p.HasMemoryState() {
		current = &MemoryState{Stability: p.Stability, Difficulty: p.Difficulty}
	}
	candidate := e.memory.NextStates(current, desiredRetention, elapsed)[rating]

	statusBefore := p.Status
	p.Status = NextStatus(statusBefore, rating)
	p.Stability = candidate.State.Stability
	p.Difficulty = candidate.State.Difficulty
	p.IntervalDays = candidate.IntervalDays
	p.ReviewCount++
	reviewedAt := now
	p.LastReviewedAt = &reviewedAt
	next := now.Add(time.Duration(candidate.IntervalDays) * 24 * time.Hour)
	p.NextReviewAt = &next

	if err := e.progress.Upsert(ctx, tx, p, now); err != nil {
		return nil, err
	}

	entry := &models.ReviewLog{
		ProgressID:    p.ID,
		Rating:        rating,
		ElapsedDays:   elapsed,
		ScheduledDays: candidate.IntervalDays,
		Stability:     candidate.State.Stability,
		Difficulty:    candidate.State.Difficulty,
		Status:        statusBefore,
		DurationMs:    durationMs,
		ReviewedAt:    now,
	}
	if err := e.logs.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if card.LevelID != nil {
		correct := rating >= models.RatingGood
		if err := e.levels.RecordAnswer(ctx, tx, userID, card, correct, now); err != nil {
			return nil, err
		}
	}

	return &ReviewResult{Progress: *p, Log: *entry}, nil
}

// elapsedDays returns the whole days between the last review and now,
// clamped at zero.
func elapsedDays(lastReviewedAt *time.Time, now time.Time) int {
	if lastReviewedAt == nil {
		return 0
	}
	d := int(now.Sub(*lastReviewedAt).Hours() / 24.0)
	if d < 0 {
		return 0
	}
	return d
}
