package levels

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

func TestMain(m *testing.M) {
	if err := database.ConnectForTest(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open test database: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	_ = database.Close()
	os.Exit(code)
}

var levelSeq int64

type levelFixture struct {
	t    *testing.T
	ctx  context.Context
	user *models.User
	col  *models.Collection
}

func newLevelFixture(t *testing.T) *levelFixture {
	t.Helper()
	ctx := context.Background()
	levelSeq++

	user, err := database.NewUserRepository().GetOrCreateByTelegramID(ctx, database.DB, 500000+levelSeq, "tester", "Test")
	require.NoError(t, err)

	col := &models.Collection{OwnerID: user.ID, Name: fmt.Sprintf("levels-%d", levelSeq), IsPublic: true}
	require.NoError(t, database.NewCollectionRepository().Create(ctx, database.DB, col))

	return &levelFixture{t: t, ctx: ctx, user: user, col: col}
}

func (f *levelFixture) level(name string, minCards int, minRate float64) *models.Level {
	f.t.Helper()
	l := &models.Level{CollectionID: f.col.ID, Name: name, MinCards: minCards, MinSuccessRate: minRate}
	require.NoError(f.t, database.NewLevelRepository().Create(f.ctx, database.DB, l))
	return l
}

func (f *levelFixture) card(levelID int64) *models.Flashcard {
	f.t.Helper()
	c := &models.Flashcard{
		CollectionID: f.col.ID,
		FrontText:    "front",
		BackText:     "back",
		Direction:    models.DirectionDirect,
		LevelID:      &levelID,
	}
	require.NoError(f.t, database.NewFlashcardRepository().Create(f.ctx, database.DB, c))
	require.NoError(f.t, database.NewLevelRepository().AddItem(f.ctx, database.DB, levelID, c.ID, 0))
	return c
}

func TestIsUnlocked(t *testing.T) {
	f := newLevelFixture(t)
	s := NewService()
	repo := database.NewLevelRepository()

	l1 := f.level("L1", 1, 0.5)
	l2 := f.level("L2", 1, 0.5)
	require.NoError(t, repo.AddPrerequisite(f.ctx, database.DB, l2.ID, l1.ID))

	// No progress row for the prerequisite: locked.
	unlocked, err := s.IsUnlocked(f.ctx, f.user.ID, l2.ID)
	require.NoError(t, err)
	assert.False(t, unlocked)

	// Progress without completed_at: still locked.
	now := time.Now().UTC()
	require.NoError(t, repo.UpsertUserProgress(f.ctx, database.DB, &models.UserLevelProgress{
		UserID: f.user.ID, LevelID: l1.ID, TotalAnswers: 2, CorrectAnswers: 2, LastActivityAt: &now,
	}))
	unlocked, err = s.IsUnlocked(f.ctx, f.user.ID, l2.ID)
	require.NoError(t, err)
	assert.False(t, unlocked)

	// Completed prerequisite: unlocked.
	require.NoError(t, repo.MarkCompleted(f.ctx, database.DB, f.user.ID, l1.ID, now))
	unlocked, err = s.IsUnlocked(f.ctx, f.user.ID, l2.ID)
	require.NoError(t, err)
	assert.True(t, unlocked)

	// A level without prerequisites is always unlocked.
	unlocked, err = s.IsUnlocked(f.ctx, f.user.ID, l1.ID)
	require.NoError(t, err)
	assert.True(t, unlocked)
}

func TestRecordAnswerAccumulatesAndCompletes(t *testing.T) {
	f := newLevelFixture(t)
	s := NewService()
	repo := database.NewLevelRepository()
	progress := database.NewProgressRepository()
	now := time.Now().UTC()

	level := f.level("basics", 1, 0.5)
	card := f.card(level.ID)

	// An answer before any card graduates: counters move, not completion.
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, true, now))
	p, err := repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalAnswers)
	assert.Equal(t, 1, p.CorrectAnswers)
	assert.Equal(t, 0, p.CardsCompleted)
	assert.Nil(t, p.CompletedAt)
	assert.NotNil(t, p.UnlockedAt)
	assert.True(t, p.IsStarted())

	// Graduate the card's only side, then answer again.
	require.NoError(t, progress.Upsert(f.ctx, database.DB, &models.Progress{
		UserID:      f.user.ID,
		FlashcardID: card.ID,
		Side:        models.SideDirect,
		Status:      models.StatusGraduated,
		ReviewCount: 3,
	}, now))
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, true, now))

	p, err = repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CardsCompleted)
	assert.NotNil(t, p.CompletedAt)
}

func TestRecordAnswerRespectsSuccessRate(t *testing.T) {
	f := newLevelFixture(t)
	s := NewService()
	repo := database.NewLevelRepository()
	progress := database.NewProgressRepository()
	now := time.Now().UTC()

	level := f.level("strict", 1, 0.9)
	card := f.card(level.ID)

	require.NoError(t, progress.Upsert(f.ctx, database.DB, &models.Progress{
		UserID:      f.user.ID,
		FlashcardID: card.ID,
		Side:        models.SideDirect,
		Status:      models.StatusGraduated,
		ReviewCount: 3,
	}, now))

	// One hit, one miss: 50% success against a 90% bar.
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, true, now))
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, false, now))

	p, err := repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CardsCompleted)
	assert.Nil(t, p.CompletedAt)
}

func TestRecordAnswerReopensCompletedLevel(t *testing.T) {
	f := newLevelFixture(t)
	s := NewService()
	repo := database.NewLevelRepository()
	progress := database.NewProgressRepository()
	now := time.Now().UTC()

	level := f.level("strict", 1, 0.9)
	card := f.card(level.ID)

	require.NoError(t, progress.Upsert(f.ctx, database.DB, &models.Progress{
		UserID:      f.user.ID,
		FlashcardID: card.ID,
		Side:        models.SideDirect,
		Status:      models.StatusGraduated,
		ReviewCount: 3,
	}, now))

	// A single hit clears the bar at 1/1.
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, true, now))
	p, err := repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	require.NotNil(t, p.CompletedAt)

	// A miss drops the rate to 50% and reopens the level.
	require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, false, now))
	p, err = repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	assert.Nil(t, p.CompletedAt)

	// Enough hits push it back over 90% and the level completes again.
	for i := 0; i < 8; i++ {
		require.NoError(t, s.RecordAnswer(f.ctx, database.DB, f.user.ID, card, true, now))
	}
	p, err = repo.GetUserProgress(f.ctx, database.DB, f.user.ID, level.ID)
	require.NoError(t, err)
	require.NotNil(t, p.CompletedAt)
}

func TestOverview(t *testing.T) {
	f := newLevelFixture(t)
	s := NewService()
	repo := database.NewLevelRepository()
	now := time.Now().UTC()

	l1 := f.level("intro", 1, 0.5)
	l2 := f.level("advanced", 2, 0.5)
	require.NoError(t, repo.AddPrerequisite(f.ctx, database.DB, l2.ID, l1.ID))
	f.card(l2.ID)
	f.card(l2.ID)

	o, err := s.Overview(f.ctx, f.user.ID, l2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, o.CardCount)
	assert.False(t, o.IsUnlocked)
	assert.False(t, o.IsStarted)
	require.Len(t, o.Prerequisites, 1)
	assert.Equal(t, "intro", o.Prerequisites[0].Name)
	assert.False(t, o.Prerequisites[0].IsCompleted)

	require.NoError(t, repo.UpsertUserProgress(f.ctx, database.DB, &models.UserLevelProgress{
		UserID: f.user.ID, LevelID: l1.ID, TotalAnswers: 3, CorrectAnswers: 3,
	}))
	require.NoError(t, repo.MarkCompleted(f.ctx, database.DB, f.user.ID, l1.ID, now))

	o, err = s.Overview(f.ctx, f.user.ID, l2.ID)
	require.NoError(t, err)
	assert.True(t, o.IsUnlocked)
	assert.True(t, o.Prerequisites[0].IsCompleted)

	all, err := s.ListOverviews(f.ctx, f.user.ID, f.col.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
