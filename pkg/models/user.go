package models

import "time"

// User represents a learner known to the bot.
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// UserRetention is the cached per-user desired-retention value with the
// time it was computed. Stale entries are recomputed lazily.
type UserRetention struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	Retention  float64   `json:"retention" db:"retention"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}
