package grading

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/srs"
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

func TestSimilarityRoundTrip(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("klama", "klama"), 1e-9)
	assert.Equal(t, models.RatingEasy, ratingForSimilarity(similarity("klama", "klama")))

	assert.InDelta(t, 0.0, similarity("klama", "xxxxx"), 1e-9)
	assert.Equal(t, models.RatingAgain, ratingForSimilarity(similarity("klama", "xxxxx")))
}

func TestSimilarityIdempotent(t *testing.T) {
	first := similarity("pronunciation", "pronounciation")
	second := similarity("pronunciation", "pronounciation")
	assert.Equal(t, first, second)
	assert.Equal(t, ratingForSimilarity(first), ratingForSimilarity(second))
}

func TestSimilarityBounds(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, similarity("abc", ""), 1e-9)
	// One edit in a ten-rune word.
	assert.InDelta(t, 0.9, similarity("déjeuners!", "déjeuners?"), 1e-9)
}

func TestRatingForSimilarityThresholds(t *testing.T) {
	assert.Equal(t, models.RatingEasy, ratingForSimilarity(1.0))
	assert.Equal(t, models.RatingEasy, ratingForSimilarity(0.99))
	assert.Equal(t, models.RatingGood, ratingForSimilarity(0.95))
	assert.Equal(t, models.RatingGood, ratingForSimilarity(0.90))
	assert.Equal(t, models.RatingHard, ratingForSimilarity(0.80))
	assert.Equal(t, models.RatingHard, ratingForSimilarity(0.70))
	assert.Equal(t, models.RatingAgain, ratingForSimilarity(0.69))
	assert.Equal(t, models.RatingAgain, ratingForSimilarity(0.0))
}

func TestAlternatives(t *testing.T) {
	assert.Equal(t, []string{"answer"}, alternatives("answer", true))
	assert.Len(t, alternatives("to go; to walk;  ; to leave", true), 3)
	// Dictionary content is never split.
	assert.Equal(t, []string{"to go; to walk"}, alternatives("to go; to walk", false))
	// Alternatives made only of separators fall back to the raw text.
	assert.Equal(t, []string{"; ;"}, alternatives("; ;", true))
}

var gradingSeq int64

func seedFillInCard(t *testing.T, direction models.Direction, front, back string) (*models.User, *models.Flashcard) {
	t.Helper()
	ctx := context.Background()
	gradingSeq++

	user, err := database.NewUserRepository().GetOrCreateByTelegramID(ctx, database.DB, 300000+gradingSeq, "tester", "Test")
	require.NoError(t, err)

	col := &models.Collection{OwnerID: user.ID, Name: fmt.Sprintf("grading-%d", gradingSeq), IsPublic: true}
	require.NoError(t, database.NewCollectionRepository().Create(ctx, database.DB, col))

	card := &models.Flashcard{
		CollectionID: col.ID,
		FrontText:    front,
		BackText:     back,
		Direction:    direction,
	}
	require.NoError(t, database.NewFlashcardRepository().Create(ctx, database.DB, card))
	return user, card
}

type fixedRetention struct{}

func (fixedRetention) DesiredRetention(ctx context.Context, userID int64) float64 { return 0.9 }

type noopLevels struct{}

func (noopLevels) IsUnlocked(ctx context.Context, userID, levelID int64) (bool, error) {
	return true, nil
}

func (noopLevels) RecordAnswer(ctx context.Context, q database.Queryer, userID int64, card *models.Flashcard, correct bool, now time.Time) error {
	return nil
}

func newTestGrader() *Grader {
	return NewGrader(srs.NewEngine(fixedRetention{}, noopLevels{}))
}

func TestGradeExactCorrectSchedulesReview(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionDirect, "klama", "to go")
	g := newTestGrader()

	result, err := g.GradeExact(ctx, user.ID, card.ID, models.SideDirect, "  TO GO ", nil)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, models.RatingEasy, result.Rating)
	require.NotNil(t, result.Review)
	assert.Equal(t, 1, result.Review.Progress.ReviewCount)
}

func TestGradeExactMismatchDoesNotSchedule(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionDirect, "klama", "to go")
	g := newTestGrader()

	result, err := g.GradeExact(ctx, user.ID, card.ID, models.SideDirect, "to walk", nil)
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Equal(t, "to go", result.Expected)
	assert.Nil(t, result.Review)

	_, err = database.NewProgressRepository().GetActive(ctx, database.DB, user.ID, card.ID, models.SideDirect)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestGradeFuzzyAlwaysSchedules(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionFillIn, "klama", "to go")
	g := newTestGrader()

	result, err := g.GradeFuzzy(ctx, user.ID, card.ID, models.SideDirect, "completely wrong", nil)
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Equal(t, models.RatingAgain, result.Rating)
	require.NotNil(t, result.Review)
	assert.Equal(t, 1, result.Review.Progress.ReviewCount)
}

func TestGradeFuzzyAlternativesTakeBest(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionFillIn, "klama", "to go; to walk; to leave")
	g := newTestGrader()

	result, err := g.GradeFuzzy(ctx, user.ID, card.ID, models.SideDirect, "to walk", nil)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, models.RatingEasy, result.Rating)
	assert.InDelta(t, 1.0, result.Similarity, 1e-9)
}

func TestGradeFuzzyReverseSide(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionFillInReverse, "klama", "to go")
	g := newTestGrader()

	result, err := g.GradeFuzzy(ctx, user.ID, card.ID, models.SideReverse, "klama", nil)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, "klama", result.Expected)
}

func TestGradeDirectionScope(t *testing.T) {
	ctx := context.Background()
	g := newTestGrader()

	user, fillIn := seedFillInCard(t, models.DirectionFillIn, "klama", "to go")
	_, err := g.GradeExact(ctx, user.ID, fillIn.ID, models.SideDirect, "to go", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))

	user, plain := seedFillInCard(t, models.DirectionDirect, "klama", "to go")
	_, err = g.GradeFuzzy(ctx, user.ID, plain.ID, models.SideDirect, "to go", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))

	user, quiz := seedFillInCard(t, models.DirectionQuizDirect, "klama", "to go")
	_, err = g.GradeExact(ctx, user.ID, quiz.ID, models.SideDirect, "to go", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))
	_, err = g.GradeFuzzy(ctx, user.ID, quiz.ID, models.SideDirect, "to go", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))
}

func TestGradePrivateCollectionDenied(t *testing.T) {
	ctx := context.Background()
	g := newTestGrader()
	gradingSeq++

	owner, err := database.NewUserRepository().GetOrCreateByTelegramID(ctx, database.DB, 310000+gradingSeq, "owner", "Owner")
	require.NoError(t, err)
	col := &models.Collection{OwnerID: owner.ID, Name: fmt.Sprintf("secret-%d", gradingSeq), IsPublic: false}
	require.NoError(t, database.NewCollectionRepository().Create(ctx, database.DB, col))
	card := &models.Flashcard{CollectionID: col.ID, FrontText: "klama", BackText: "to go", Direction: models.DirectionFillIn}
	require.NoError(t, database.NewFlashcardRepository().Create(ctx, database.DB, card))

	stranger, err := database.NewUserRepository().GetOrCreateByTelegramID(ctx, database.DB, 320000+gradingSeq, "stranger", "Stranger")
	require.NoError(t, err)

	// Neither grader may reveal the expected answer.
	_, err = g.GradeExact(ctx, stranger.ID, card.ID, models.SideDirect, "wrong", nil)
	assert.True(t, errors.Is(err, srs.ErrAccessDenied))
	_, err = g.GradeFuzzy(ctx, stranger.ID, card.ID, models.SideDirect, "wrong", nil)
	assert.True(t, errors.Is(err, srs.ErrAccessDenied))

	// The owner still grades normally.
	result, err := g.GradeFuzzy(ctx, owner.ID, card.ID, models.SideDirect, "to go", nil)
	require.NoError(t, err)
	assert.True(t, result.Correct)
}

func TestGradeRejectsInformational(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionJustInformation, "note", "just context")
	g := newTestGrader()

	_, err := g.GradeExact(ctx, user.ID, card.ID, models.SideDirect, "anything", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))

	_, err = g.GradeFuzzy(ctx, user.ID, card.ID, models.SideDirect, "anything", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))
}

func TestGradeRejectsMissingContent(t *testing.T) {
	ctx := context.Background()
	user, card := seedFillInCard(t, models.DirectionFillIn, "klama", "")
	g := newTestGrader()

	_, err := g.GradeFuzzy(ctx, user.ID, card.ID, models.SideDirect, "to go", nil)
	assert.True(t, errors.Is(err, srs.ErrInvalidState))
}
