package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByID returns a user by internal ID. Returns ErrNotFound if missing.
func (r *UserRepository) GetByID(ctx context.Context, q Queryer, id int64) (*models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q, &u, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "user %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetOrCreateByTelegramID returns the user linked to the Telegram account,
// creating it on first contact.
func (r *UserRepository) GetOrCreateByTelegramID(ctx context.Context, q Queryer, telegramID int64, username, firstName string) (*models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q, &u, "SELECT * FROM users WHERE telegram_id = $1", telegramID)
	if err == nil {
		return &u, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u = models.User{TelegramID: telegramID, Username: username, FirstName: firstName}
	err = sqlx.GetContext(ctx, q, &u.ID, `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, telegramID, username, firstName)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// ListIDs returns every user ID. Used by maintenance jobs.
func (r *UserRepository) ListIDs(ctx context.Context, q Queryer) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, "SELECT id FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
