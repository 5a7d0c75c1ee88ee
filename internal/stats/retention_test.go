package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

var retentionSeq int64

// seedUserWithEvents creates a user with n logged reviews on a single card.
func seedUserWithEvents(t *testing.T, n int) *models.User {
	t.Helper()
	ctx := context.Background()
	retentionSeq++

	user, err := database.NewUserRepository().GetOrCreateByTelegramID(ctx, database.DB, 600000+retentionSeq, "tester", "Test")
	require.NoError(t, err)

	col := &models.Collection{OwnerID: user.ID, Name: fmt.Sprintf("retention-%d", retentionSeq), IsPublic: true}
	require.NoError(t, database.NewCollectionRepository().Create(ctx, database.DB, col))

	card := &models.Flashcard{CollectionID: col.ID, FrontText: "front", BackText: "back", Direction: models.DirectionDirect}
	require.NoError(t, database.NewFlashcardRepository().Create(ctx, database.DB, card))

	now := time.Now().UTC()
	p := &models.Progress{
		UserID: user.ID, FlashcardID: card.ID, Side: models.SideDirect,
		Status: models.StatusLearning, ReviewCount: n,
	}
	require.NoError(t, database.NewProgressRepository().Upsert(ctx, database.DB, p, now))

	logs := database.NewReviewLogRepository()
	for i := 0; i < n; i++ {
		require.NoError(t, logs.Create(ctx, database.DB, &models.ReviewLog{
			ProgressID: p.ID,
			Rating:     models.RatingGood,
			Stability:  3.2,
			Difficulty: 5.0,
			Status:     models.StatusLearning,
			ReviewedAt: now.AddDate(0, 0, -n+i),
		}))
	}
	return user
}

func TestDesiredRetentionDefaultBelowThreshold(t *testing.T) {
	s := NewRetentionService()
	user := seedUserWithEvents(t, 10)

	assert.InDelta(t, 0.9, s.DesiredRetention(context.Background(), user.ID), 1e-9)
}

func TestDesiredRetentionNoHistory(t *testing.T) {
	s := NewRetentionService()
	user := seedUserWithEvents(t, 0)

	assert.InDelta(t, 0.9, s.DesiredRetention(context.Background(), user.ID), 1e-9)
}

func TestDesiredRetentionUsesFreshCache(t *testing.T) {
	ctx := context.Background()
	s := NewRetentionService()
	user := seedUserWithEvents(t, 10)

	require.NoError(t, database.NewRetentionRepository().Set(ctx, database.DB, user.ID, 0.84, time.Now().UTC()))
	assert.InDelta(t, 0.84, s.DesiredRetention(ctx, user.ID), 1e-9)
}

func TestDesiredRetentionIgnoresStaleCache(t *testing.T) {
	ctx := context.Background()
	s := NewRetentionService()
	user := seedUserWithEvents(t, 10)

	stale := time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, database.NewRetentionRepository().Set(ctx, database.DB, user.ID, 0.84, stale))

	// Too few events to optimize, so the stale value gives way to the default.
	assert.InDelta(t, 0.9, s.DesiredRetention(ctx, user.ID), 1e-9)
}

func TestMedianDuration(t *testing.T) {
	ms := func(v int) *int { return &v }
	events := []database.UserEvent{
		{DurationMs: ms(1000)},
		{DurationMs: ms(9000)},
		{DurationMs: ms(3000)},
		{DurationMs: nil},
	}
	assert.Equal(t, 3000, medianDuration(events))
	assert.Equal(t, placeholderDurationMs, medianDuration([]database.UserEvent{{DurationMs: nil}}))
	assert.Equal(t, placeholderDurationMs, medianDuration(nil))
}
