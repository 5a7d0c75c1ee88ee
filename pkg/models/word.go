package models

import "time"

// Word is a dictionary entry that flashcards can link to instead of
// carrying free text.
type Word struct {
	ID         int64     `json:"id" db:"id"`
	Word       string    `json:"word" db:"word"`
	Definition string    `json:"definition" db:"definition"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
