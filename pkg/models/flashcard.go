package models

import "time"

// Direction determines how a flashcard is presented and which card sides
// require independent progress tracking.
type Direction string

const (
	// DirectionDirect shows the word and asks for the definition.
	DirectionDirect Direction = "direct"
	// DirectionReverse shows the definition and asks for the word.
	DirectionReverse Direction = "reverse"
	// DirectionBoth tracks both recall directions independently.
	DirectionBoth Direction = "both"
	// DirectionFillIn is a typed-answer variant of DirectionDirect.
	DirectionFillIn Direction = "fill_in"
	// DirectionFillInReverse is a typed-answer variant of DirectionReverse.
	DirectionFillInReverse Direction = "fill_in_reverse"
	// DirectionFillInBoth is a typed-answer variant of DirectionBoth.
	DirectionFillInBoth Direction = "fill_in_both"
	// DirectionJustInformation is shown once and never quizzed.
	DirectionJustInformation Direction = "just_information"
	// DirectionQuizDirect asks a multiple-choice question for the definition.
	DirectionQuizDirect Direction = "quiz_direct"
	// DirectionQuizReverse asks a multiple-choice question for the word.
	DirectionQuizReverse Direction = "quiz_reverse"
	// DirectionQuizBoth quizzes both directions, one chosen per presentation.
	DirectionQuizBoth Direction = "quiz_both"
)

// CardSide identifies one recall direction of a flashcard.
type CardSide string

const (
	// SideDirect recognizes the target from the prompt.
	SideDirect CardSide = "direct"
	// SideReverse recalls the prompt from the target.
	SideReverse CardSide = "reverse"
)

// Sides returns the card sides that need progress rows for this direction.
func (d Direction) Sides() []CardSide {
	switch d {
	case DirectionDirect, DirectionFillIn, DirectionQuizDirect, DirectionJustInformation:
		return []CardSide{SideDirect}
	case DirectionReverse, DirectionFillInReverse, DirectionQuizReverse:
		return []CardSide{SideReverse}
	case DirectionBoth, DirectionFillInBoth, DirectionQuizBoth:
		return []CardSide{SideDirect, SideReverse}
	}
	return nil
}

// HasSide reports whether side is tracked for this direction.
func (d Direction) HasSide(side CardSide) bool {
	for _, s := range d.Sides() {
		if s == side {
			return true
		}
	}
	return false
}

// IsFillIn reports whether the card is answered by typing.
func (d Direction) IsFillIn() bool {
	return d == DirectionFillIn || d == DirectionFillInReverse || d == DirectionFillInBoth
}

// IsQuiz reports whether the card is answered by multiple choice.
func (d Direction) IsQuiz() bool {
	return d == DirectionQuizDirect || d == DirectionQuizReverse || d == DirectionQuizBoth
}

// IsInformational reports whether the card carries no gradable content.
func (d Direction) IsInformational() bool {
	return d == DirectionJustInformation
}

// Flashcard represents a card to be learned. A card is backed either by a
// dictionary word (WordID set) or by free text (FrontText/BackText), or both;
// the dictionary link wins for grading and quiz generation.
type Flashcard struct {
	ID           int64     `json:"id" db:"id"`
	CollectionID int64     `json:"collection_id" db:"collection_id"`
	WordID       *int64    `json:"word_id" db:"word_id"`
	FrontText    string    `json:"front_text" db:"front_text"`
	BackText     string    `json:"back_text" db:"back_text"`
	Direction    Direction `json:"direction" db:"direction"`
	Position     int       `json:"position" db:"position"`
	AutoProgress bool      `json:"auto_progress" db:"auto_progress"`
	LevelID      *int64    `json:"level_id" db:"level_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
