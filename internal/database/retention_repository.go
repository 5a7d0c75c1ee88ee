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

// RetentionRepository handles the per-user desired-retention cache
type RetentionRepository struct{}

// NewRetentionRepository creates a new repository instance
func NewRetentionRepository() *RetentionRepository {
	return &RetentionRepository{}
}

// Get returns the cached retention row for a user, regardless of staleness.
// Returns ErrNotFound when nothing has been cached yet.
func (r *RetentionRepository) Get(ctx context.Context, q Queryer, userID int64) (*models.UserRetention, error) {
	var row models.UserRetention
	err := sqlx.GetContext(ctx, q, &row, "SELECT * FROM user_retention WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "retention cache for user %d", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retention cache: %w", err)
	}
	return &row, nil
}

// Set stores or overwrites the cached retention value for a user.
func (r *RetentionRepository) Set(ctx context.Context, q Queryer, userID int64, retention float64, computedAt time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE user_retention SET retention = $1, computed_at = $2 WHERE user_id = $3
	`, retention, computedAt, userID)
	if err != nil {
		return fmt.Errorf("failed to update retention cache: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO user_retention (user_id, retention, computed_at) VALUES ($1, $2, $3)
	`, userID, retention, computedAt); err != nil {
		return fmt.Errorf("failed to insert retention cache: %w", err)
	}
	return nil
}

// ListStaleUsers returns users whose cached retention is older than the
// cutoff or missing entirely. Used by the maintenance job.
func (r *RetentionRepository) ListStaleUsers(ctx context.Context, q Queryer, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q, &ids, `
		SELECT u.id FROM users u
		LEFT JOIN user_retention ur ON ur.user_id = u.id
		WHERE ur.user_id IS NULL OR ur.computed_at < $1
		ORDER BY u.id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale retention users: %w", err)
	}
	return ids, nil
}
