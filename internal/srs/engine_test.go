package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/lexibot/pkg/models"
)

func TestNextStatusTable(t *testing.T) {
	statuses := []models.ProgressStatus{
		models.StatusNew, models.StatusLearning, models.StatusReview, models.StatusGraduated,
	}

	// Rating 1 demotes to learning from everything, including graduated.
	for _, s := range statuses {
		assert.Equal(t, models.StatusLearning, NextStatus(s, models.RatingAgain), "again from %s", s)
	}

	// Rating 2 never moves anything.
	for _, s := range statuses {
		assert.Equal(t, s, NextStatus(s, models.RatingHard), "hard from %s", s)
	}

	// Good and easy advance one step and keep graduated terminal.
	for _, r := range []models.Rating{models.RatingGood, models.RatingEasy} {
		assert.Equal(t, models.StatusLearning, NextStatus(models.StatusNew, r))
		assert.Equal(t, models.StatusReview, NextStatus(models.StatusLearning, r))
		assert.Equal(t, models.StatusGraduated, NextStatus(models.StatusReview, r))
		assert.Equal(t, models.StatusGraduated, NextStatus(models.StatusGraduated, r))
	}
}

func TestNextStatusTotal(t *testing.T) {
	statuses := []models.ProgressStatus{
		models.StatusNew, models.StatusLearning, models.StatusReview, models.StatusGraduated,
	}
	valid := map[models.ProgressStatus]bool{
		models.StatusNew: true, models.StatusLearning: true,
		models.StatusReview: true, models.StatusGraduated: true,
	}
	for _, s := range statuses {
		for r := models.RatingAgain; r <= models.RatingEasy; r++ {
			assert.True(t, valid[NextStatus(s, r)], "(%s, %d) must map to a defined status", s, r)
		}
	}
}

func TestNextStatusEmptyTreatedAsNew(t *testing.T) {
	assert.Equal(t, models.StatusLearning, NextStatus("", models.RatingGood))
	assert.Equal(t, models.StatusLearning, NextStatus("", models.RatingAgain))
	assert.Equal(t, models.StatusNew, NextStatus("", models.RatingHard))
}

func TestElapsedDays(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, elapsedDays(nil, now))

	past := now.Add(-49 * time.Hour)
	assert.Equal(t, 2, elapsedDays(&past, now))

	recent := now.Add(-time.Hour)
	assert.Equal(t, 0, elapsedDays(&recent, now))

	// A clock skew never produces negative elapsed days.
	future := now.Add(48 * time.Hour)
	assert.Equal(t, 0, elapsedDays(&future, now))
}
