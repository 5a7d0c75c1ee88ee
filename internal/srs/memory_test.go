package srs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/pkg/models"
)

func allRatings() []models.Rating {
	return []models.Rating{models.RatingAgain, models.RatingHard, models.RatingGood, models.RatingEasy}
}

func TestBootstrapCandidates(t *testing.T) {
	m := NewMemoryModel()
	c := m.NextStates(nil, 0.9, 0)
	require.Len(t, c, 4)

	wantStability := map[models.Rating]float64{
		models.RatingAgain: 0.4,
		models.RatingHard:  1.2,
		models.RatingGood:  3.2,
		models.RatingEasy:  15.7,
	}
	for _, r := range allRatings() {
		cand := c[r]
		assert.InDelta(t, wantStability[r], cand.State.Stability, 1e-9)
		assert.GreaterOrEqual(t, cand.State.Difficulty, 1.0)
		assert.LessOrEqual(t, cand.State.Difficulty, 10.0)
		assert.GreaterOrEqual(t, cand.IntervalDays, 1)
	}

	// Difficulty decreases with better ratings.
	assert.Greater(t, c[models.RatingAgain].State.Difficulty, c[models.RatingEasy].State.Difficulty)

	// At the default retention the first interval tracks stability.
	assert.Equal(t, 3, c[models.RatingGood].IntervalDays)
	assert.Equal(t, 16, c[models.RatingEasy].IntervalDays)
}

func TestBootstrapDifficultyFormula(t *testing.T) {
	m := NewMemoryModel()
	c := m.NextStates(nil, 0.9, 0)

	for _, r := range allRatings() {
		want := 7.1949 - math.Exp(0.5345*float64(r-1)) + 1.0
		if want < 1.0 {
			want = 1.0
		} else if want > 10.0 {
			want = 10.0
		}
		assert.InDelta(t, want, c[r].State.Difficulty, 1e-9)
	}
}

func TestNextStatesMonotonicIntervals(t *testing.T) {
	m := NewMemoryModel()
	for _, current := range []*MemoryState{
		nil,
		{Stability: 3.0, Difficulty: 5.0},
		{Stability: 25.0, Difficulty: 2.5},
	} {
		c := m.NextStates(current, 0.9, 3)
		require.Len(t, c, 4)
		prev := 0
		for _, r := range allRatings() {
			cand := c[r]
			assert.GreaterOrEqual(t, cand.IntervalDays, prev)
			assert.GreaterOrEqual(t, cand.IntervalDays, 1)
			assert.Greater(t, cand.State.Stability, 0.0)
			prev = cand.IntervalDays
		}
	}
}

func TestNextStatesFallbackOnBadState(t *testing.T) {
	m := NewMemoryModel()
	for _, bad := range []*MemoryState{
		{Stability: math.NaN(), Difficulty: 5.0},
		{Stability: -1.0, Difficulty: 5.0},
		{Stability: math.Inf(1), Difficulty: 5.0},
		{Stability: 3.0, Difficulty: math.NaN()},
	} {
		c := m.NextStates(bad, 0.9, 0)
		require.Len(t, c, 4)
		assert.Equal(t, Candidate{State: fallbackState, IntervalDays: 1}, c[models.RatingAgain])
		assert.Equal(t, Candidate{State: fallbackState, IntervalDays: 3}, c[models.RatingHard])
		assert.Equal(t, Candidate{State: fallbackState, IntervalDays: 7}, c[models.RatingGood])
		assert.Equal(t, Candidate{State: fallbackState, IntervalDays: 14}, c[models.RatingEasy])
	}
}

func TestNextStatesNormalizesRetention(t *testing.T) {
	m := NewMemoryModel()
	// Out-of-range retention falls back to the default rather than failing.
	for _, retention := range []float64{0, -0.5, 1.0, 2.0} {
		c := m.NextStates(nil, retention, 0)
		require.Len(t, c, 4)
		assert.Equal(t, 16, c[models.RatingEasy].IntervalDays)
	}
}

func TestHigherStabilityLongerIntervals(t *testing.T) {
	m := NewMemoryModel()
	low := m.NextStates(&MemoryState{Stability: 2.0, Difficulty: 5.0}, 0.9, 2)
	high := m.NextStates(&MemoryState{Stability: 40.0, Difficulty: 5.0}, 0.9, 40)
	assert.Greater(t, high[models.RatingGood].IntervalDays, low[models.RatingGood].IntervalDays)
}
