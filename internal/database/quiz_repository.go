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

// QuizRepository handles database operations for quiz answers and the
// cached correct-answer texts
type QuizRepository struct{}

// NewQuizRepository creates a new repository instance
func NewQuizRepository() *QuizRepository {
	return &QuizRepository{}
}

// GetOption returns the cached correct answer for a card.
// Returns ErrNotFound when none has been computed yet.
func (r *QuizRepository) GetOption(ctx context.Context, q Queryer, flashcardID int64) (*models.QuizOption, error) {
	var opt models.QuizOption
	err := sqlx.GetContext(ctx, q, &opt, "SELECT * FROM quiz_options WHERE flashcard_id = $1", flashcardID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "quiz option for card %d", flashcardID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz option: %w", err)
	}
	return &opt, nil
}

// SetOption stores or overwrites the cached correct answer for a card.
func (r *QuizRepository) SetOption(ctx context.Context, q Queryer, flashcardID int64, answer string, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE quiz_options SET answer = $1, updated_at = $2 WHERE flashcard_id = $3
	`, answer, now, flashcardID)
	if err != nil {
		return fmt.Errorf("failed to update quiz option: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO quiz_options (flashcard_id, answer, updated_at) VALUES ($1, $2, $3)
	`, flashcardID, answer, now); err != nil {
		return fmt.Errorf("failed to insert quiz option: %w", err)
	}
	return nil
}

// CreateAnswer appends one quiz submission to the history log.
func (r *QuizRepository) CreateAnswer(ctx context.Context, q Queryer, a *models.QuizAnswer) error {
	err := sqlx.GetContext(ctx, q, &a.ID, `
		INSERT INTO quiz_answers (user_id, flashcard_id, selected, correct, options_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, a.UserID, a.FlashcardID, a.Selected, a.Correct, a.OptionsJSON, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quiz answer: %w", err)
	}
	return nil
}

// ListWrongSelections returns the user's historical wrong picks for a card,
// grouped by text and ranked by frequency then recency. This is the
// exploitation signal for distractor selection. Recency only drives the
// ordering; the sqlite driver cannot scan an aggregated timestamp column.
func (r *QuizRepository) ListWrongSelections(ctx context.Context, q Queryer, userID, flashcardID int64) ([]models.WrongSelection, error) {
	var picks []models.WrongSelection
	err := sqlx.SelectContext(ctx, q, &picks, `
		SELECT selected, COUNT(*) AS count
		FROM quiz_answers
		WHERE user_id = $1 AND flashcard_id = $2 AND NOT correct
		GROUP BY selected
		ORDER BY COUNT(*) DESC, MAX(created_at) DESC
	`, userID, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wrong selections: %w", err)
	}
	return picks, nil
}
