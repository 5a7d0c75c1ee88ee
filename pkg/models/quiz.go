package models

import "time"

// QuizOption caches the precomputed correct-answer text for a quiz card.
// It is overwritten whenever the card's content changes.
type QuizOption struct {
	FlashcardID int64     `json:"flashcard_id" db:"flashcard_id"`
	Answer      string    `json:"answer" db:"answer"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// QuizAnswer is an append-only record of one quiz submission. Wrong
// selections feed distractor exploitation for future questions.
type QuizAnswer struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	FlashcardID int64     `json:"flashcard_id" db:"flashcard_id"`
	Selected    string    `json:"selected" db:"selected"`
	Correct     bool      `json:"correct" db:"correct"`
	OptionsJSON string    `json:"options_json" db:"options_json"` // full presented option set
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// WrongSelection is one distinct wrong answer a user has picked for a card,
// with how often. Rows arrive ranked by frequency then recency.
type WrongSelection struct {
	Selected string `json:"selected" db:"selected"`
	Count    int    `json:"count" db:"count"`
}
