package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/pkg/models"
)

func TestListWrongSelectionsRanksByFrequencyThenRecency(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizRepository()
	user, card := seedCard(t, models.DirectionQuizDirect, nil)
	now := time.Now().UTC()

	record := func(selected string, correct bool, at time.Time) {
		require.NoError(t, repo.CreateAnswer(ctx, DB, &models.QuizAnswer{
			UserID:      user.ID,
			FlashcardID: card.ID,
			Selected:    selected,
			Correct:     correct,
			OptionsJSON: "[]",
			CreatedAt:   at,
		}))
	}

	record("to walk", false, now.Add(-3*time.Hour))
	record("to leave", false, now.Add(-2*time.Hour))
	record("to walk", false, now.Add(-1*time.Hour))
	record("to go", true, now)

	picks, err := repo.ListWrongSelections(ctx, DB, user.ID, card.ID)
	require.NoError(t, err)
	require.Len(t, picks, 2)

	assert.Equal(t, "to walk", picks[0].Selected)
	assert.Equal(t, 2, picks[0].Count)
	assert.Equal(t, "to leave", picks[1].Selected)
	assert.Equal(t, 1, picks[1].Count)
}

func TestListWrongSelectionsBreaksTiesByRecency(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizRepository()
	user, card := seedCard(t, models.DirectionQuizDirect, nil)
	now := time.Now().UTC()

	for i, selected := range []string{"older", "newer"} {
		require.NoError(t, repo.CreateAnswer(ctx, DB, &models.QuizAnswer{
			UserID:      user.ID,
			FlashcardID: card.ID,
			Selected:    selected,
			Correct:     false,
			OptionsJSON: "[]",
			CreatedAt:   now.Add(time.Duration(i) * time.Hour),
		}))
	}

	picks, err := repo.ListWrongSelections(ctx, DB, user.ID, card.ID)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.Equal(t, "newer", picks[0].Selected)
	assert.Equal(t, "older", picks[1].Selected)
}
