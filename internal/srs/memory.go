package srs

import (
	"math"
	"time"

	"github.com/sky-flux/flux"

	"github.com/example/lexibot/pkg/models"
)

// DefaultRetention is used whenever no per-user retention is available.
const DefaultRetention = 0.9

// MemoryState holds the two memory-model numbers kept per tracked side.
type MemoryState struct {
	Stability  float64
	Difficulty float64
}

// Candidate is one possible outcome of a review: the memory state and the
// whole-day interval that grading with a given rating would produce.
type Candidate struct {
	State        MemoryState
	IntervalDays int
}

// Candidates maps every valid rating to its candidate outcome.
type Candidates map[models.Rating]Candidate

// initialStability is the first-review stability for each rating.
var initialStability = map[models.Rating]float64{
	models.RatingAgain: 0.4,
	models.RatingHard:  1.2,
	models.RatingGood:  3.2,
	models.RatingEasy:  15.7,
}

// fallbackIntervals is the fixed schedule used when the model cannot
// produce candidates (bad stored state, scheduler failure).
var fallbackIntervals = map[models.Rating]int{
	models.RatingAgain: 1,
	models.RatingHard:  3,
	models.RatingGood:  7,
	models.RatingEasy:  14,
}

var fallbackState = MemoryState{Stability: 1.0, Difficulty: 5.0}

// MemoryModel computes candidate next states for a review. First reviews use
// fixed initial parameters; later reviews run the scheduler over the stored
// memory state.
type MemoryModel struct {
	decay  float64
	factor float64
}

// NewMemoryModel creates a MemoryModel using the default scheduler parameters.
func NewMemoryModel() *MemoryModel {
	decay := -flux.DefaultParameters[20]
	return &MemoryModel{
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// NextStates returns a candidate outcome for every rating. It never fails:
// when the scheduler cannot be applied it returns the fixed fallback
// schedule instead. Intervals are guaranteed non-decreasing in rating order.
func (m *MemoryModel) NextStates(current *MemoryState, desiredRetention float64, elapsedDays int) Candidates {
	if desiredRetention <= 0 || desiredRetention >= 1 {
		desiredRetention = DefaultRetention
	}

	var c Candidates
	if current == nil {
		c = m.bootstrap(desiredRetention)
	} else {
		var err error
		c, err = m.preview(*current, desiredRetention, elapsedDays)
		if err != nil {
			c = fallbackCandidates()
		}
	}

	// A better rating never schedules sooner than a worse one.
	prev := 0
	for r := models.RatingAgain; r <= models.RatingEasy; r++ {
		cand := c[r]
		if cand.IntervalDays < prev {
			cand.IntervalDays = prev
			c[r] = cand
		}
		prev = cand.IntervalDays
	}
	return c
}

// bootstrap builds first-review candidates from the fixed initial stability
// and difficulty formulas, with the interval taken from the forgetting curve.
func (m *MemoryModel) bootstrap(desiredRetention float64) Candidates {
	c := make(Candidates, 4)
	for r := models.RatingAgain; r <= models.RatingEasy; r++ {
		s := initialStability[r]
		d := 7.1949 - math.Exp(0.5345*float64(r-1)) + 1.0
		if d < 1.0 {
			d = 1.0
		} else if d > 10.0 {
			d = 10.0
		}
		c[r] = Candidate{
			State:        MemoryState{Stability: s, Difficulty: d},
			IntervalDays: m.intervalDays(s, desiredRetention),
		}
	}
	return c
}

// preview runs the scheduler over the stored memory state and extracts a
// candidate per rating.
func (m *MemoryModel) preview(current MemoryState, desiredRetention float64, elapsedDays int) (Candidates, error) {
	if !validState(current) {
		return nil, errInvalidMemoryState
	}

	sched, err := flux.NewScheduler(flux.SchedulerConfig{
		DesiredRetention: desiredRetention,
		LearningSteps:    []time.Duration{},
		RelearningSteps:  []time.Duration{},
		DisableFuzzing:   true,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	last := now.Add(-time.Duration(elapsedDays) * 24 * time.Hour)
	s, d := current.Stability, current.Difficulty
	card := flux.Card{
		CardID:     0,
		State:      flux.Review,
		Stability:  &s,
		Difficulty: &d,
		Due:        now,
		LastReview: &last,
	}

	c := make(Candidates, 4)
	for r := models.RatingAgain; r <= models.RatingEasy; r++ {
		next, ok := sched.PreviewCard(card, now)[flux.Rating(r)]
		if !ok || next.Stability == nil || next.Difficulty == nil {
			return nil, errInvalidMemoryState
		}
		st := MemoryState{Stability: *next.Stability, Difficulty: *next.Difficulty}
		if !validState(st) {
			return nil, errInvalidMemoryState
		}
		ivl := int(math.Round(next.Due.Sub(now).Hours() / 24.0))
		if ivl < 1 {
			ivl = 1
		}
		c[r] = Candidate{State: st, IntervalDays: ivl}
	}
	return c, nil
}

// intervalDays inverts the forgetting curve: the number of days after which
// retrievability at the given stability drops to the desired retention.
func (m *MemoryModel) intervalDays(stability, desiredRetention float64) int {
	ivl := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1.0)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	return days
}

func fallbackCandidates() Candidates {
	c := make(Candidates, 4)
	for r, ivl := range fallbackIntervals {
		c[r] = Candidate{State: fallbackState, IntervalDays: ivl}
	}
	return c
}

func validState(s MemoryState) bool {
	if math.IsNaN(s.Stability) || math.IsInf(s.Stability, 0) || s.Stability <= 0 {
		return false
	}
	if math.IsNaN(s.Difficulty) || math.IsInf(s.Difficulty, 0) {
		return false
	}
	return true
}
