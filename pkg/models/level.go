package models

import "time"

// Level groups flashcards inside a collection and gates access behind
// prerequisite levels. Prerequisite edges form a DAG; cycles are a
// configuration error and are rejected at definition time, not here.
type Level struct {
	ID             int64     `json:"id" db:"id"`
	CollectionID   int64     `json:"collection_id" db:"collection_id"`
	Name           string    `json:"name" db:"name"`
	MinCards       int       `json:"min_cards" db:"min_cards"`
	MinSuccessRate float64   `json:"min_success_rate" db:"min_success_rate"`
	Position       int       `json:"position" db:"position"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// LevelItem assigns a flashcard to a level with a position.
type LevelItem struct {
	LevelID     int64 `json:"level_id" db:"level_id"`
	FlashcardID int64 `json:"flashcard_id" db:"flashcard_id"`
	Position    int   `json:"position" db:"position"`
}

// UserLevelProgress aggregates one user's activity inside one level.
type UserLevelProgress struct {
	UserID         int64      `json:"user_id" db:"user_id"`
	LevelID        int64      `json:"level_id" db:"level_id"`
	CardsCompleted int        `json:"cards_completed" db:"cards_completed"`
	CorrectAnswers int        `json:"correct_answers" db:"correct_answers"`
	TotalAnswers   int        `json:"total_answers" db:"total_answers"`
	UnlockedAt     *time.Time `json:"unlocked_at" db:"unlocked_at"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	LastActivityAt *time.Time `json:"last_activity_at" db:"last_activity_at"`
}

// IsStarted reports whether the user has answered anything in the level.
func (p *UserLevelProgress) IsStarted() bool {
	return p.TotalAnswers > 0
}
