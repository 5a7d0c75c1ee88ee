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

// LevelRepository handles database operations for levels, their
// prerequisite edges and per-user level progress
type LevelRepository struct{}

// NewLevelRepository creates a new repository instance
func NewLevelRepository() *LevelRepository {
	return &LevelRepository{}
}

// GetByID returns a level by ID. Returns ErrNotFound if it doesn't exist.
func (r *LevelRepository) GetByID(ctx context.Context, q Queryer, id int64) (*models.Level, error) {
	var l models.Level
	err := sqlx.GetContext(ctx, q, &l, "SELECT * FROM levels WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "level %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level: %w", err)
	}
	return &l, nil
}

// Create inserts a new level
func (r *LevelRepository) Create(ctx context.Context, q Queryer, l *models.Level) error {
	err := sqlx.GetContext(ctx, q, &l.ID, `
		INSERT INTO levels (collection_id, name, min_cards, min_success_rate, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, l.CollectionID, l.Name, l.MinCards, l.MinSuccessRate, l.Position)
	if err != nil {
		return fmt.Errorf("failed to create level: %w", err)
	}
	return nil
}

// AddPrerequisite records a prerequisite edge. The level definition layer is
// responsible for keeping the edges acyclic.
func (r *LevelRepository) AddPrerequisite(ctx context.Context, q Queryer, levelID, prereqID int64) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO level_prereqs (level_id, prereq_id) VALUES ($1, $2)
	`, levelID, prereqID); err != nil {
		return fmt.Errorf("failed to add prerequisite: %w", err)
	}
	return nil
}

// AddItem assigns a flashcard to a level.
func (r *LevelRepository) AddItem(ctx context.Context, q Queryer, levelID, flashcardID int64, position int) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO level_items (level_id, flashcard_id, position) VALUES ($1, $2, $3)
	`, levelID, flashcardID, position); err != nil {
		return fmt.Errorf("failed to add level item: %w", err)
	}
	return nil
}

// Prerequisites returns the direct DAG predecessors of a level.
func (r *LevelRepository) Prerequisites(ctx context.Context, q Queryer, levelID int64) ([]models.Level, error) {
	var prereqs []models.Level
	err := sqlx.SelectContext(ctx, q, &prereqs, `
		SELECT l.* FROM levels l
		JOIN level_prereqs lp ON lp.prereq_id = l.id
		WHERE lp.level_id = $1
		ORDER BY l.position
	`, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prerequisites: %w", err)
	}
	return prereqs, nil
}

// ListByCollection returns a collection's levels in position order.
func (r *LevelRepository) ListByCollection(ctx context.Context, q Queryer, collectionID int64) ([]models.Level, error) {
	var levels []models.Level
	err := sqlx.SelectContext(ctx, q, &levels, `
		SELECT * FROM levels WHERE collection_id = $1 ORDER BY position
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	return levels, nil
}

// CountItems returns the number of flashcards assigned to a level.
func (r *LevelRepository) CountItems(ctx context.Context, q Queryer, levelID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, "SELECT COUNT(*) FROM level_items WHERE level_id = $1", levelID)
	if err != nil {
		return 0, fmt.Errorf("failed to count level items: %w", err)
	}
	return count, nil
}

// GetUserProgress returns a user's progress row for a level, or ErrNotFound
// when the user has never touched the level.
func (r *LevelRepository) GetUserProgress(ctx context.Context, q Queryer, userID, levelID int64) (*models.UserLevelProgress, error) {
	var p models.UserLevelProgress
	err := sqlx.GetContext(ctx, q, &p, `
		SELECT * FROM user_level_progress WHERE user_id = $1 AND level_id = $2
	`, userID, levelID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "level progress for level %d", levelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level progress: %w", err)
	}
	return &p, nil
}

// UpsertUserProgress inserts or overwrites a user's level progress row.
func (r *LevelRepository) UpsertUserProgress(ctx context.Context, q Queryer, p *models.UserLevelProgress) error {
	res, err := q.ExecContext(ctx, `
		UPDATE user_level_progress SET
			cards_completed = $1,
			correct_answers = $2,
			total_answers = $3,
			unlocked_at = $4,
			completed_at = $5,
			last_activity_at = $6
		WHERE user_id = $7 AND level_id = $8
	`,
		p.CardsCompleted, p.CorrectAnswers, p.TotalAnswers,
		p.UnlockedAt, p.CompletedAt, p.LastActivityAt,
		p.UserID, p.LevelID,
	)
	if err != nil {
		return fmt.Errorf("failed to update level progress: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO user_level_progress (
			user_id, level_id, cards_completed, correct_answers, total_answers,
			unlocked_at, completed_at, last_activity_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		p.UserID, p.LevelID, p.CardsCompleted, p.CorrectAnswers, p.TotalAnswers,
		p.UnlockedAt, p.CompletedAt, p.LastActivityAt,
	); err != nil {
		return fmt.Errorf("failed to insert level progress: %w", err)
	}
	return nil
}

// MarkCompleted sets completed_at when unset.
func (r *LevelRepository) MarkCompleted(ctx context.Context, q Queryer, userID, levelID int64, completedAt time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE user_level_progress SET completed_at = $1
		WHERE user_id = $2 AND level_id = $3 AND completed_at IS NULL
	`, completedAt, userID, levelID); err != nil {
		return fmt.Errorf("failed to mark level completed: %w", err)
	}
	return nil
}
