package srs

import (
	"context"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

// autoProgress advances other cards in the same collection after a successful
// review: every auto-progression target whose source text mentions the
// reviewed word as a whole token receives a synthetic easy review on the same
// side. It runs exactly one hop; advanced cards never trigger further
// progression.
func (e *Engine) autoProgress(ctx context.Context, tx *sqlx.Tx, userID int64, card *models.Flashcard, side models.CardSide, desiredRetention float64, now time.Time) ([]int64, error) {
	word, err := e.words.GetByID(ctx, tx, *card.WordID)
	if err != nil {
		return nil, err
	}
	targets, err := e.cards.ListAutoProgressTargets(ctx, tx, card.CollectionID, card.ID)
	if err != nil {
		return nil, err
	}

	var advanced []int64
	for i := range targets {
		t := &targets[i]
		if !t.Direction.HasSide(side) {
			continue
		}
		if !mentionsWord(t.WordText, word.Word) {
			continue
		}
		p, err := e.progress.GetActive(ctx, tx, userID, t.ID, side)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Status == models.StatusGraduated {
			continue
		}
		if _, err := e.applyReview(ctx, tx, userID, &t.Flashcard, side, models.RatingEasy, desiredRetention, nil, now); err != nil {
			return nil, err
		}
		advanced = append(advanced, t.ID)
	}
	return advanced, nil
}

// mentionsWord reports whether text contains word as a whole token. Token
// boundaries are anything other than letters, digits and apostrophes; the
// match is case-sensitive.
func mentionsWord(text, word string) bool {
	if word == "" {
		return false
	}
	pattern := `(?:^|[^a-zA-Z0-9'])` + regexp.QuoteMeta(word) + `(?:[^a-zA-Z0-9']|$)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
