package models

import "time"

// Rating grades a single recall attempt, from complete failure to
// effortless recall.
type Rating int

const (
	// RatingAgain means the answer could not be recalled.
	RatingAgain Rating = 1
	// RatingHard means the answer was recalled with significant difficulty.
	RatingHard Rating = 2
	// RatingGood means the answer was recalled with some effort.
	RatingGood Rating = 3
	// RatingEasy means the answer was recalled effortlessly.
	RatingEasy Rating = 4
)

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// ProgressStatus is the learning stage of one card side for one user.
type ProgressStatus string

const (
	// StatusNew means the side has never been reviewed.
	StatusNew ProgressStatus = "new"
	// StatusLearning means the side is in its initial learning phase.
	StatusLearning ProgressStatus = "learning"
	// StatusReview means the side entered the long-term review cycle.
	StatusReview ProgressStatus = "review"
	// StatusGraduated means the side is considered learned.
	StatusGraduated ProgressStatus = "graduated"
)

// Progress tracks one user's memorization state for one side of one
// flashcard. At most one non-archived row exists per (user, card, side);
// archived rows preserve history after a card's direction changes.
type Progress struct {
	ID             int64          `json:"id" db:"id"`
	UserID         int64          `json:"user_id" db:"user_id"`
	FlashcardID    int64          `json:"flashcard_id" db:"flashcard_id"`
	Side           CardSide       `json:"side" db:"side"`
	Status         ProgressStatus `json:"status" db:"status"`
	Stability      float64        `json:"stability" db:"stability"`
	Difficulty     float64        `json:"difficulty" db:"difficulty"`
	IntervalDays   int            `json:"interval_days" db:"interval_days"`
	ReviewCount    int            `json:"review_count" db:"review_count"`
	LastReviewedAt *time.Time     `json:"last_reviewed_at" db:"last_reviewed_at"`
	NextReviewAt   *time.Time     `json:"next_review_at" db:"next_review_at"` // nil for informational cards
	Archived       bool           `json:"archived" db:"archived"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// HasMemoryState reports whether the stability/difficulty fields are
// meaningful. They are only defined once at least one review happened.
func (p *Progress) HasMemoryState() bool {
	return p.ReviewCount > 0
}
