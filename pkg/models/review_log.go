package models

import "time"

// ReviewLog is an append-only record of a single graded review. Rows are
// never mutated; an explicit reset is the only operation that deletes them.
type ReviewLog struct {
	ID            int64          `json:"id" db:"id"`
	ProgressID    int64          `json:"progress_id" db:"progress_id"`
	Rating        Rating         `json:"rating" db:"rating"`
	ElapsedDays   int            `json:"elapsed_days" db:"elapsed_days"`
	ScheduledDays int            `json:"scheduled_days" db:"scheduled_days"`
	Stability     float64        `json:"stability" db:"stability"`
	Difficulty    float64        `json:"difficulty" db:"difficulty"`
	Status        ProgressStatus `json:"status" db:"status"` // status at review time, before the transition
	DurationMs    *int           `json:"duration_ms" db:"duration_ms"`
	ReviewedAt    time.Time      `json:"reviewed_at" db:"reviewed_at"`
}
