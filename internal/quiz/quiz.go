// Package quiz builds multiple-choice questions and grades their
// submissions. Distractors mix exploitation (the user's past wrong picks for
// the card) with exploration (answers sampled from the rest of the
// collection).
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

// OptionCount is the number of choices presented per question.
const OptionCount = 4

// maxExploitation caps how many distractors come from past wrong picks.
const maxExploitation = 2

// Question is one multiple-choice presentation: a prompt and a shuffled
// option set containing the correct answer exactly once.
type Question struct {
	FlashcardID int64           `json:"flashcard_id"`
	Side        models.CardSide `json:"side"`
	Prompt      string          `json:"prompt"`
	Options     []string        `json:"options"`
}

// SubmitResult reports one graded quiz submission.
type SubmitResult struct {
	Correct bool
	Answer  string
	Review  *srs.ReviewResult
}

// Service builds quiz questions and grades submissions through the review
// engine.
type Service struct {
	engine  *srs.Engine
	cards   *database.FlashcardRepository
	words   *database.WordRepository
	quizzes *database.QuizRepository
	rng     *rand.Rand
	now     func() time.Time
}

// NewService creates a quiz Service delegating reviews to the engine.
func NewService(engine *srs.Engine) *Service {
	return &Service{
		engine:  engine,
		cards:   database.NewFlashcardRepository(),
		words:   database.NewWordRepository(),
		quizzes: database.NewQuizRepository(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// BuildQuestion assembles a question for a quiz card: fixed side for
// directional quizzes, a random side for two-way ones. The correct answer is
// cached per card and refreshed on each build.
func (s *Service) BuildQuestion(ctx context.Context, userID, flashcardID int64) (*Question, error) {
	card, err := s.cards.GetByID(ctx, database.DB, flashcardID)
	if err != nil {
		return nil, err
	}
	if !card.Direction.IsQuiz() {
		return nil, errors.Wrapf(srs.ErrInvalidState, "flashcard %d direction %q is not a quiz", card.ID, card.Direction)
	}
	if err := s.engine.Authorize(ctx, userID, card); err != nil {
		return nil, err
	}

	side := s.pickSide(card.Direction)
	prompt, answer, err := s.resolveContent(ctx, card, side)
	if err != nil {
		return nil, err
	}
	if err := s.quizzes.SetOption(ctx, database.DB, card.ID, answer, s.now()); err != nil {
		return nil, err
	}

	options, err := s.buildOptions(ctx, userID, card, side, answer)
	if err != nil {
		return nil, err
	}

	return &Question{
		FlashcardID: card.ID,
		Side:        side,
		Prompt:      prompt,
		Options:     options,
	}, nil
}

// Submit grades one selected option against the cached correct answer, logs
// the submission, and schedules a review (easy on a hit, again on a miss).
func (s *Service) Submit(ctx context.Context, userID, flashcardID int64, side models.CardSide, selected string, options []string) (*SubmitResult, error) {
	card, err := s.cards.GetByID(ctx, database.DB, flashcardID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(ctx, userID, card); err != nil {
		return nil, err
	}

	opt, err := s.quizzes.GetOption(ctx, database.DB, flashcardID)
	if err != nil {
		return nil, err
	}

	correct := strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(opt.Answer))

	raw, err := json.Marshal(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode option set")
	}
	if err := s.quizzes.CreateAnswer(ctx, database.DB, &models.QuizAnswer{
		UserID:      userID,
		FlashcardID: flashcardID,
		Selected:    selected,
		Correct:     correct,
		OptionsJSON: string(raw),
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, err
	}

	rating := models.RatingAgain
	if correct {
		rating = models.RatingEasy
	}
	review, err := s.engine.Review(ctx, srs.ReviewRequest{
		UserID:      userID,
		FlashcardID: flashcardID,
		Side:        side,
		Rating:      rating,
	})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Correct: correct, Answer: opt.Answer, Review: review}, nil
}

func (s *Service) pickSide(direction models.Direction) models.CardSide {
	switch direction {
	case models.DirectionQuizReverse:
		return models.SideReverse
	case models.DirectionQuizBoth:
		if s.rng.Intn(2) == 0 {
			return models.SideDirect
		}
		return models.SideReverse
	default:
		return models.SideDirect
	}
}

// resolveContent returns the prompt shown to the user and the answer they
// must pick, for the given side.
func (s *Service) resolveContent(ctx context.Context, card *models.Flashcard, side models.CardSide) (prompt, answer string, err error) {
	if card.WordID != nil {
		word, err := s.words.GetByID(ctx, database.DB, *card.WordID)
		if err != nil {
			return "", "", err
		}
		prompt, answer = word.Word, word.Definition
	} else {
		prompt, answer = card.FrontText, card.BackText
	}
	if side == models.SideReverse {
		prompt, answer = answer, prompt
	}
	if strings.TrimSpace(answer) == "" {
		return "", "", errors.Wrapf(database.ErrNotFound, "flashcard %d has no answer content for side %q", card.ID, side)
	}
	return prompt, answer, nil
}

// buildOptions picks up to two exploitation distractors from the user's past
// wrong selections, fills the rest from the collection pool, pads with
// placeholders if the pool runs dry, and shuffles the final set.
func (s *Service) buildOptions(ctx context.Context, userID int64, card *models.Flashcard, side models.CardSide, answer string) ([]string, error) {
	seen := map[string]bool{normalizeOption(answer): true}
	var distractors []string

	wrong, err := s.quizzes.ListWrongSelections(ctx, database.DB, userID, card.ID)
	if err != nil {
		return nil, err
	}
	for _, w := range wrong {
		if len(distractors) >= maxExploitation {
			break
		}
		key := normalizeOption(w.Selected)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		distractors = append(distractors, w.Selected)
	}

	pool, err := s.cards.ListQuizPool(ctx, database.DB, card.CollectionID, card.ID)
	if err != nil {
		return nil, err
	}
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for i := range pool {
		if len(distractors) >= OptionCount-1 {
			break
		}
		text := explorationText(&pool[i], side)
		key := normalizeOption(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		distractors = append(distractors, text)
	}

	for n := 1; len(distractors) < OptionCount-1; n++ {
		distractors = append(distractors, fmt.Sprintf("Fallback Option %d", n))
	}

	options := append(distractors, answer)
	s.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options, nil
}

// explorationText returns a pool card's candidate distractor of the same
// kind as the correct answer: definitions for direct quizzes, words for
// reverse ones.
func explorationText(c *database.WordCard, side models.CardSide) string {
	if c.WordID != nil {
		if side == models.SideDirect {
			return c.Definition
		}
		return c.WordText
	}
	if side == models.SideDirect {
		return c.BackText
	}
	return c.FrontText
}

func normalizeOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
