package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// SnoozeOffset is how far a snoozed card's next review is pushed out.
const SnoozeOffset = 6 * time.Hour

// ProgressRepository handles database operations for per-side progress rows
type ProgressRepository struct{}

// NewProgressRepository creates a new repository instance
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{}
}

// GetActive returns the non-archived progress row for (user, card, side).
// Returns ErrNotFound when no such row exists.
func (r *ProgressRepository) GetActive(ctx context.Context, q Queryer, userID, flashcardID int64, side models.CardSide) (*models.Progress, error) {
	var p models.Progress
	err := sqlx.GetContext(ctx, q, &p, `
		SELECT * FROM progress
		WHERE user_id = $1 AND flashcard_id = $2 AND side = $3 AND NOT archived
	`, userID, flashcardID, side)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "progress for card %d side %s", flashcardID, side)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &p, nil
}

// ListActiveByCard returns every non-archived side of a card for a user.
func (r *ProgressRepository) ListActiveByCard(ctx context.Context, q Queryer, userID, flashcardID int64) ([]models.Progress, error) {
	var rows []models.Progress
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT * FROM progress
		WHERE user_id = $1 AND flashcard_id = $2 AND NOT archived
		ORDER BY side
	`, userID, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return rows, nil
}

// InitializeSides idempotently creates a New progress row for every side the
// card's direction implies. Informational cards get a single side that is
// created already graduated with no next review.
func (r *ProgressRepository) InitializeSides(ctx context.Context, q Queryer, userID int64, card *models.Flashcard, now time.Time) error {
	for _, side := range card.Direction.Sides() {
		if _, err := r.GetActive(ctx, q, userID, card.ID, side); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		p := &models.Progress{
			UserID:      userID,
			FlashcardID: card.ID,
			Side:        side,
			Status:      models.StatusNew,
		}
		if card.Direction.IsInformational() {
			p.Status = models.StatusGraduated
		} else {
			due := now
			p.NextReviewAt = &due
		}
		if err := r.insert(ctx, q, p, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProgressRepository) insert(ctx context.Context, q Queryer, p *models.Progress, now time.Time) error {
	err := sqlx.GetContext(ctx, q, &p.ID, `
		INSERT INTO progress (
			user_id, flashcard_id, side, status, stability, difficulty,
			interval_days, review_count, last_reviewed_at, next_review_at,
			archived, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		p.UserID, p.FlashcardID, p.Side, p.Status, p.Stability, p.Difficulty,
		p.IntervalDays, p.ReviewCount, p.LastReviewedAt, p.NextReviewAt,
		p.Archived, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert progress: %w", err)
	}
	return nil
}

// Upsert inserts the row if no active one exists for its (user, card, side)
// key, otherwise overwrites the state fields of the existing row in place.
// The caller is responsible for having incremented ReviewCount.
func (r *ProgressRepository) Upsert(ctx context.Context, q Queryer, p *models.Progress, now time.Time) error {
	var existingID int64
	err := sqlx.GetContext(ctx, q, &existingID, `
		SELECT id FROM progress
		WHERE user_id = $1 AND flashcard_id = $2 AND side = $3 AND NOT archived
	`, p.UserID, p.FlashcardID, p.Side)
	if err == sql.ErrNoRows {
		return r.insert(ctx, q, p, now)
	}
	if err != nil {
		return fmt.Errorf("failed to look up progress for upsert: %w", err)
	}

	p.ID = existingID
	_, err = q.ExecContext(ctx, `
		UPDATE progress SET
			status = $1,
			stability = $2,
			difficulty = $3,
			interval_days = $4,
			review_count = $5,
			last_reviewed_at = $6,
			next_review_at = $7,
			updated_at = $8
		WHERE id = $9
	`,
		p.Status, p.Stability, p.Difficulty, p.IntervalDays, p.ReviewCount,
		p.LastReviewedAt, p.NextReviewAt, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// ResetToNew wipes all review logs for the card and resets every active side
// to a pristine New state due immediately. The whole reset is atomic.
func (r *ProgressRepository) ResetToNew(ctx context.Context, userID, flashcardID int64, now time.Time) error {
	return WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM review_logs WHERE progress_id IN (
				SELECT id FROM progress WHERE user_id = $1 AND flashcard_id = $2
			)
		`, userID, flashcardID)
		if err != nil {
			return fmt.Errorf("failed to delete review logs: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE progress SET
				status = $1,
				stability = 0,
				difficulty = 0,
				interval_days = 0,
				review_count = 0,
				last_reviewed_at = NULL,
				next_review_at = $2,
				updated_at = $3
			WHERE user_id = $4 AND flashcard_id = $5 AND NOT archived
		`, models.StatusNew, now, now, userID, flashcardID)
		if err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
		return nil
	})
}

// Snooze pushes next_review_at forward by SnoozeOffset on every active side
// of the card, without touching memory state or history. Returns ErrNotFound
// when the user has no active progress for the card.
func (r *ProgressRepository) Snooze(ctx context.Context, userID, flashcardID int64, now time.Time) error {
	return WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := r.ListActiveByCard(ctx, tx, userID, flashcardID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.Wrapf(ErrNotFound, "no progress to snooze for card %d", flashcardID)
		}
		for _, p := range rows {
			base := now
			if p.NextReviewAt != nil {
				base = *p.NextReviewAt
			}
			next := base.Add(SnoozeOffset)
			if _, err := tx.ExecContext(ctx, `
				UPDATE progress SET next_review_at = $1, updated_at = $2 WHERE id = $3
			`, next, now, p.ID); err != nil {
				return fmt.Errorf("failed to snooze progress: %w", err)
			}
		}
		return nil
	})
}

// Archive soft-deletes one side's progress so a later direction change can
// recreate it without losing history.
func (r *ProgressRepository) Archive(ctx context.Context, q Queryer, userID, flashcardID int64, side models.CardSide, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE progress SET archived = TRUE, updated_at = $1
		WHERE user_id = $2 AND flashcard_id = $3 AND side = $4 AND NOT archived
	`, now, userID, flashcardID, side)
	if err != nil {
		return fmt.Errorf("failed to archive progress: %w", err)
	}
	return nil
}

// SyncDirection reconciles a user's progress rows with the card's current
// direction: sides the direction no longer implies are archived, missing
// sides are initialized. Used after a card's direction changes.
func (r *ProgressRepository) SyncDirection(ctx context.Context, userID int64, card *models.Flashcard, now time.Time) error {
	return WithTx(ctx, func(tx *sqlx.Tx) error {
		active, err := r.ListActiveByCard(ctx, tx, userID, card.ID)
		if err != nil {
			return err
		}
		for _, p := range active {
			if !card.Direction.HasSide(p.Side) {
				if err := r.Archive(ctx, tx, userID, card.ID, p.Side, now); err != nil {
					return err
				}
			}
		}
		return r.InitializeSides(ctx, tx, userID, card, now)
	})
}

// DueCard is a due progress row joined with the card it belongs to.
type DueCard struct {
	models.Progress
	Direction    models.Direction `db:"direction"`
	CollectionID int64            `db:"collection_id"`
	WordID       *int64           `db:"word_id"`
}

// ListDue returns the user's due, non-informational cards ordered by how
// overdue they are.
func (r *ProgressRepository) ListDue(ctx context.Context, q Queryer, userID int64, limit int, now time.Time) ([]DueCard, error) {
	var due []DueCard
	err := sqlx.SelectContext(ctx, q, &due, `
		SELECT p.*, f.direction, f.collection_id, f.word_id
		FROM progress p
		JOIN flashcards f ON f.id = p.flashcard_id
		WHERE p.user_id = $1
		  AND NOT p.archived
		  AND p.next_review_at IS NOT NULL
		  AND p.next_review_at <= $2
		  AND f.direction <> $3
		ORDER BY p.next_review_at ASC
		LIMIT $4
	`, userID, now, models.DirectionJustInformation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}
	return due, nil
}

// CountDue returns how many cards are currently due for the user.
func (r *ProgressRepository) CountDue(ctx context.Context, q Queryer, userID int64, now time.Time) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*)
		FROM progress p
		JOIN flashcards f ON f.id = p.flashcard_id
		WHERE p.user_id = $1
		  AND NOT p.archived
		  AND p.next_review_at IS NOT NULL
		  AND p.next_review_at <= $2
		  AND f.direction <> $3
	`, userID, now, models.DirectionJustInformation)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

// ProgressOverview is one progress row joined with displayable card content,
// used by the export report.
type ProgressOverview struct {
	models.Progress
	CollectionName string  `db:"collection_name"`
	Front          string  `db:"front"`
	WordText       *string `db:"word_text"`
}

// ListByUser returns all active progress rows for a user with collection
// and card context, ordered by collection then card position.
func (r *ProgressRepository) ListByUser(ctx context.Context, q Queryer, userID int64) ([]ProgressOverview, error) {
	var rows []ProgressOverview
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT p.*, c.name AS collection_name, f.front_text AS front, w.word AS word_text
		FROM progress p
		JOIN flashcards f ON f.id = p.flashcard_id
		JOIN collections c ON c.id = f.collection_id
		LEFT JOIN words w ON w.id = f.word_id
		WHERE p.user_id = $1 AND NOT p.archived
		ORDER BY c.name, f.position, p.side
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user progress: %w", err)
	}
	return rows, nil
}

// CountCompletedInLevel counts a user's graduated, non-archived sides among
// a level's cards, collapsing multi-side cards to their worst side.
func (r *ProgressRepository) CountCompletedInLevel(ctx context.Context, q Queryer, userID, levelID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*)
		FROM level_items li
		WHERE li.level_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM progress p
			WHERE p.user_id = $2
			  AND p.flashcard_id = li.flashcard_id
			  AND NOT p.archived
			  AND p.status <> $3
		  )
		  AND EXISTS (
			SELECT 1 FROM progress p
			WHERE p.user_id = $2 AND p.flashcard_id = li.flashcard_id AND NOT p.archived
		  )
	`, levelID, userID, models.StatusGraduated)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed level cards: %w", err)
	}
	return count, nil
}
