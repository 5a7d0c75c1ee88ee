package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// WordRepository handles database operations for dictionary words
type WordRepository struct{}

// NewWordRepository creates a new repository instance
func NewWordRepository() *WordRepository {
	return &WordRepository{}
}

// GetByID returns a word by ID. Returns ErrNotFound if it doesn't exist.
func (r *WordRepository) GetByID(ctx context.Context, q Queryer, id int64) (*models.Word, error) {
	var w models.Word
	err := sqlx.GetContext(ctx, q, &w, "SELECT * FROM words WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "word %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word: %w", err)
	}
	return &w, nil
}

// Create inserts a new word
func (r *WordRepository) Create(ctx context.Context, q Queryer, w *models.Word) error {
	err := sqlx.GetContext(ctx, q, &w.ID, `
		INSERT INTO words (word, definition)
		VALUES ($1, $2)
		RETURNING id
	`, w.Word, w.Definition)
	if err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}
	return nil
}
