package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// CollectionRepository handles database operations for collections
type CollectionRepository struct{}

// NewCollectionRepository creates a new repository instance
func NewCollectionRepository() *CollectionRepository {
	return &CollectionRepository{}
}

// GetByID returns a collection by ID. Returns ErrNotFound if it doesn't exist.
func (r *CollectionRepository) GetByID(ctx context.Context, q Queryer, id int64) (*models.Collection, error) {
	var c models.Collection
	err := sqlx.GetContext(ctx, q, &c, "SELECT * FROM collections WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "collection %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &c, nil
}

// Create inserts a new collection
func (r *CollectionRepository) Create(ctx context.Context, q Queryer, c *models.Collection) error {
	err := sqlx.GetContext(ctx, q, &c.ID, `
		INSERT INTO collections (owner_id, name, is_public)
		VALUES ($1, $2, $3)
		RETURNING id
	`, c.OwnerID, c.Name, c.IsPublic)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// ListAccessible returns the collections a user can review: their own plus
// public ones.
func (r *CollectionRepository) ListAccessible(ctx context.Context, q Queryer, userID int64) ([]models.Collection, error) {
	var cols []models.Collection
	err := sqlx.SelectContext(ctx, q, &cols, `
		SELECT * FROM collections
		WHERE owner_id = $1 OR is_public
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return cols, nil
}
