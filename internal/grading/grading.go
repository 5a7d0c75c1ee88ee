// Package grading turns free-text answers into ratings and hands them to the
// review engine. The exact grader schedules a review only on a correct
// answer; the fuzzy grader schedules one on every attempt.
package grading

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

// Result reports the outcome of grading one answer. Review is nil when no
// review was scheduled (an incorrect exact-match answer).
type Result struct {
	Correct    bool
	Rating     models.Rating
	Similarity float64
	Expected   string
	Review     *srs.ReviewResult
}

// Grader grades free-text answers against a card's expected text.
type Grader struct {
	engine *srs.Engine
	cards  *database.FlashcardRepository
	words  *database.WordRepository
}

// NewGrader creates a Grader delegating scheduled reviews to the engine.
func NewGrader(engine *srs.Engine) *Grader {
	return &Grader{
		engine: engine,
		cards:  database.NewFlashcardRepository(),
		words:  database.NewWordRepository(),
	}
}

// GradeExact grades an answer by normalized equality. A match schedules an
// easy review; a mismatch returns the expected answer without touching the
// schedule. Only plain show-and-recall directions are accepted.
func (g *Grader) GradeExact(ctx context.Context, userID, flashcardID int64, side models.CardSide, answer string, durationMs *int) (*Result, error) {
	card, expected, _, err := g.expectedAnswer(ctx, userID, flashcardID, side)
	if err != nil {
		return nil, err
	}
	if card.Direction.IsFillIn() || card.Direction.IsQuiz() {
		return nil, errors.Wrapf(srs.ErrInvalidState, "flashcard %d direction %q is not exact-graded", card.ID, card.Direction)
	}

	if normalize(answer) != normalize(expected) {
		return &Result{Correct: false, Expected: expected}, nil
	}

	review, err := g.engine.Review(ctx, srs.ReviewRequest{
		UserID:      userID,
		FlashcardID: card.ID,
		Side:        side,
		Rating:      models.RatingEasy,
		DurationMs:  durationMs,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Correct: true, Rating: models.RatingEasy, Expected: expected, Review: review}, nil
}

// GradeFuzzy grades an answer by normalized similarity and always schedules a
// review with the mapped rating. Free-text expected answers may carry
// semicolon-separated alternatives; the best one counts. Only fill-in
// directions are accepted.
func (g *Grader) GradeFuzzy(ctx context.Context, userID, flashcardID int64, side models.CardSide, answer string, durationMs *int) (*Result, error) {
	card, expected, freeContent, err := g.expectedAnswer(ctx, userID, flashcardID, side)
	if err != nil {
		return nil, err
	}
	if !card.Direction.IsFillIn() {
		return nil, errors.Wrapf(srs.ErrInvalidState, "flashcard %d direction %q is not fuzzy-graded", card.ID, card.Direction)
	}

	provided := normalize(answer)
	best := 0.0
	for _, alt := range alternatives(expected, freeContent) {
		if s := similarity(normalize(alt), provided); s > best {
			best = s
		}
	}
	rating := ratingForSimilarity(best)

	review, err := g.engine.Review(ctx, srs.ReviewRequest{
		UserID:      userID,
		FlashcardID: card.ID,
		Side:        side,
		Rating:      rating,
		DurationMs:  durationMs,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Correct:    rating >= models.RatingGood,
		Rating:     rating,
		Similarity: best,
		Expected:   expected,
		Review:     review,
	}, nil
}

// expectedAnswer resolves the text the user is supposed to produce for a
// side: the definition for the direct side, the word itself for the reverse
// side, falling back to the card's own texts for free-content cards. The
// access gate runs before any content is read.
func (g *Grader) expectedAnswer(ctx context.Context, userID, flashcardID int64, side models.CardSide) (*models.Flashcard, string, bool, error) {
	card, err := g.cards.GetByID(ctx, database.DB, flashcardID)
	if err != nil {
		return nil, "", false, err
	}
	if card.Direction.IsInformational() {
		return nil, "", false, errors.Wrapf(srs.ErrInvalidState, "flashcard %d is informational", card.ID)
	}
	if !card.Direction.HasSide(side) {
		return nil, "", false, errors.Wrapf(srs.ErrInvalidArgument, "side %q not tracked for direction %q", side, card.Direction)
	}
	if err := g.engine.Authorize(ctx, userID, card); err != nil {
		return nil, "", false, err
	}

	var expected string
	freeContent := card.WordID == nil
	if freeContent {
		if side == models.SideDirect {
			expected = card.BackText
		} else {
			expected = card.FrontText
		}
	} else {
		word, err := g.words.GetByID(ctx, database.DB, *card.WordID)
		if err != nil {
			return nil, "", false, err
		}
		if side == models.SideDirect {
			expected = word.Definition
		} else {
			expected = word.Word
		}
	}
	if strings.TrimSpace(expected) == "" {
		return nil, "", false, errors.Wrapf(srs.ErrInvalidState, "flashcard %d has no content for side %q", card.ID, side)
	}
	return card, expected, freeContent, nil
}

// alternatives splits a free-content expected text on semicolons; dictionary
// text is always a single alternative.
func alternatives(expected string, freeContent bool) []string {
	if !freeContent || !strings.Contains(expected, ";") {
		return []string{expected}
	}
	var alts []string
	for _, part := range strings.Split(expected, ";") {
		if strings.TrimSpace(part) != "" {
			alts = append(alts, part)
		}
	}
	if len(alts) == 0 {
		return []string{expected}
	}
	return alts
}

// similarity is 1 − levenshtein/maxLen over the two strings, in [0, 1].
func similarity(expected, provided string) float64 {
	maxLen := utf8.RuneCountInString(expected)
	if n := utf8.RuneCountInString(provided); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.Distance(expected, provided, nil)
	return 1.0 - float64(dist)/float64(maxLen)
}

func ratingForSimilarity(s float64) models.Rating {
	switch {
	case s >= 0.99:
		return models.RatingEasy
	case s >= 0.90:
		return models.RatingGood
	case s >= 0.70:
		return models.RatingHard
	default:
		return models.RatingAgain
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
