package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// FlashcardRepository handles database operations for flashcards
type FlashcardRepository struct{}

// NewFlashcardRepository creates a new repository instance
func NewFlashcardRepository() *FlashcardRepository {
	return &FlashcardRepository{}
}

// GetByID returns a flashcard by ID. Returns ErrNotFound if it doesn't exist.
func (r *FlashcardRepository) GetByID(ctx context.Context, q Queryer, id int64) (*models.Flashcard, error) {
	var card models.Flashcard
	err := sqlx.GetContext(ctx, q, &card, "SELECT * FROM flashcards WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "flashcard %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcard: %w", err)
	}
	return &card, nil
}

// Create inserts a new flashcard
func (r *FlashcardRepository) Create(ctx context.Context, q Queryer, card *models.Flashcard) error {
	err := sqlx.GetContext(ctx, q, &card.ID, `
		INSERT INTO flashcards (
			collection_id, word_id, front_text, back_text,
			direction, position, auto_progress, level_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		card.CollectionID, card.WordID, card.FrontText, card.BackText,
		card.Direction, card.Position, card.AutoProgress, card.LevelID,
	)
	if err != nil {
		return fmt.Errorf("failed to create flashcard: %w", err)
	}
	return nil
}

// UpdateDirection changes a card's direction. The caller is responsible for
// reconciling progress rows afterwards (ProgressRepository.SyncDirection).
func (r *FlashcardRepository) UpdateDirection(ctx context.Context, q Queryer, id int64, direction models.Direction) error {
	res, err := q.ExecContext(ctx, `
		UPDATE flashcards SET direction = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, direction, id)
	if err != nil {
		return fmt.Errorf("failed to update flashcard direction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.Wrapf(ErrNotFound, "flashcard %d", id)
	}
	return nil
}

// ListByCollection returns a collection's cards in position order.
func (r *FlashcardRepository) ListByCollection(ctx context.Context, q Queryer, collectionID int64) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	err := sqlx.SelectContext(ctx, q, &cards, `
		SELECT * FROM flashcards WHERE collection_id = $1 ORDER BY position
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}
	return cards, nil
}

// WordCard is a flashcard joined with its linked dictionary word.
type WordCard struct {
	models.Flashcard
	WordText   string `db:"word_text"`
	Definition string `db:"definition"`
}

// ListAutoProgressTargets returns the word-backed, auto-progression-flagged
// cards of a collection, excluding the card that triggered the search.
func (r *FlashcardRepository) ListAutoProgressTargets(ctx context.Context, q Queryer, collectionID, excludeID int64) ([]WordCard, error) {
	var cards []WordCard
	err := sqlx.SelectContext(ctx, q, &cards, `
		SELECT f.*, w.word AS word_text, w.definition
		FROM flashcards f
		JOIN words w ON w.id = f.word_id
		WHERE f.collection_id = $1
		  AND f.id <> $2
		  AND f.auto_progress
	`, collectionID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-progress targets: %w", err)
	}
	return cards, nil
}

// ListQuizPool returns the other word-backed or free-content cards of a
// collection that can donate quiz distractors.
func (r *FlashcardRepository) ListQuizPool(ctx context.Context, q Queryer, collectionID, excludeID int64) ([]WordCard, error) {
	var cards []WordCard
	err := sqlx.SelectContext(ctx, q, &cards, `
		SELECT f.*, COALESCE(w.word, '') AS word_text, COALESCE(w.definition, '') AS definition
		FROM flashcards f
		LEFT JOIN words w ON w.id = f.word_id
		WHERE f.collection_id = $1 AND f.id <> $2
	`, collectionID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz pool: %w", err)
	}
	return cards, nil
}
