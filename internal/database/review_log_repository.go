package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lexibot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ReviewLogRepository handles database operations for the append-only
// review history
type ReviewLogRepository struct{}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository() *ReviewLogRepository {
	return &ReviewLogRepository{}
}

// Create appends a review log entry. Entries are never updated afterwards.
func (r *ReviewLogRepository) Create(ctx context.Context, q Queryer, entry *models.ReviewLog) error {
	err := sqlx.GetContext(ctx, q, &entry.ID, `
		INSERT INTO review_logs (
			progress_id, rating, elapsed_days, scheduled_days,
			stability, difficulty, status, duration_ms, reviewed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		entry.ProgressID, entry.Rating, entry.ElapsedDays, entry.ScheduledDays,
		entry.Stability, entry.Difficulty, entry.Status, entry.DurationMs, entry.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review log: %w", err)
	}
	return nil
}

// CountByUser returns the user's total number of review events.
func (r *ReviewLogRepository) CountByUser(ctx context.Context, q Queryer, userID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*)
		FROM review_logs rl
		JOIN progress p ON p.id = rl.progress_id
		WHERE p.user_id = $1
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count review logs: %w", err)
	}
	return count, nil
}

// UserEvent is the slice of a review log the analytics components need.
type UserEvent struct {
	ProgressID    int64                 `db:"progress_id"`
	Rating        models.Rating         `db:"rating"`
	ElapsedDays   int                   `db:"elapsed_days"`
	ScheduledDays int                   `db:"scheduled_days"`
	Status        models.ProgressStatus `db:"status"`
	DurationMs    *int                  `db:"duration_ms"`
	ReviewedAt    time.Time             `db:"reviewed_at"`
}

// ListByUser returns all of a user's review events in chronological order.
func (r *ReviewLogRepository) ListByUser(ctx context.Context, q Queryer, userID int64) ([]UserEvent, error) {
	var events []UserEvent
	err := sqlx.SelectContext(ctx, q, &events, `
		SELECT rl.progress_id, rl.rating, rl.elapsed_days, rl.scheduled_days,
		       rl.status, rl.duration_ms, rl.reviewed_at
		FROM review_logs rl
		JOIN progress p ON p.id = rl.progress_id
		WHERE p.user_id = $1
		ORDER BY rl.reviewed_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review logs: %w", err)
	}
	return events, nil
}
