package stats

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/sky-flux/flux"
	"github.com/sky-flux/flux/optimizer"

	"github.com/example/lexibot/internal/database"
)

const (
	// minEventsForOptimizer gates optimization: below this many total
	// review events the default retention is returned as-is.
	minEventsForOptimizer = 50

	// retentionTTL is how long a computed retention value stays fresh.
	retentionTTL = 7 * 24 * time.Hour

	// defaultRetention mirrors the engine default for users without
	// enough history or when optimization fails.
	defaultRetention = 0.9

	// placeholderDurationMs stands in for events logged without a
	// duration when no measured durations exist to take a median of.
	placeholderDurationMs = 5000
)

// RetentionService computes and caches the per-user desired retention. Reads
// go through a 7-day cache; misses trigger a lazy recompute. It never fails:
// any optimizer problem yields the default.
type RetentionService struct {
	logs  *database.ReviewLogRepository
	cache *database.RetentionRepository
	opt   *optimizer.Optimizer
	now   func() time.Time
}

// NewRetentionService creates a RetentionService on the shared connection.
func NewRetentionService() *RetentionService {
	return &RetentionService{
		logs:  database.NewReviewLogRepository(),
		cache: database.NewRetentionRepository(),
		opt:   optimizer.NewOptimizer(optimizer.OptimizerConfig{}),
		now:   time.Now,
	}
}

// DesiredRetention returns the user's retention target: the cached value
// while fresh, a newly optimized one on a miss, the default otherwise.
func (s *RetentionService) DesiredRetention(ctx context.Context, userID int64) float64 {
	now := s.now()
	if cached, err := s.cache.Get(ctx, database.DB, userID); err == nil {
		if now.Sub(cached.ComputedAt) < retentionTTL {
			return cached.Retention
		}
	}
	return s.recompute(ctx, userID, now)
}

// RefreshStale recomputes retention for every user whose cached value is
// missing or older than the TTL. Used by the background scheduler.
func (s *RetentionService) RefreshStale(ctx context.Context) error {
	cutoff := s.now().Add(-retentionTTL)
	userIDs, err := s.cache.ListStaleUsers(ctx, database.DB, cutoff)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		s.recompute(ctx, id, s.now())
	}
	return nil
}

// recompute runs the optimizer over the user's full review history and
// caches a successful result. Defaults are returned uncached so the user
// graduates to an optimized value as soon as enough history exists.
func (s *RetentionService) recompute(ctx context.Context, userID int64, now time.Time) float64 {
	events, err := s.logs.ListByUser(ctx, database.DB, userID)
	if err != nil {
		log.Printf("retention: failed to load review events for user %d: %v", userID, err)
		return defaultRetention
	}
	if len(events) < minEventsForOptimizer {
		return defaultRetention
	}

	retention, err := s.opt.ComputeOptimalRetention(ctx, flux.DefaultParameters, buildRevlog(events))
	if err != nil || retention <= 0 || retention >= 1 {
		return defaultRetention
	}

	if err := s.cache.Set(ctx, database.DB, userID, retention, now); err != nil {
		log.Printf("retention: failed to cache value for user %d: %v", userID, err)
	}
	return retention
}

// buildRevlog converts stored review events into optimizer input. Events
// without a measured duration get the median of the measured ones, or a
// fixed placeholder when none were measured.
func buildRevlog(events []database.UserEvent) []flux.ReviewLog {
	fallback := medianDuration(events)

	logs := make([]flux.ReviewLog, len(events))
	for i, e := range events {
		duration := fallback
		if e.DurationMs != nil {
			duration = *e.DurationMs
		}
		d := duration
		logs[i] = flux.ReviewLog{
			CardID:         e.ProgressID,
			Rating:         flux.Rating(e.Rating),
			ReviewDatetime: e.ReviewedAt,
			ReviewDuration: &d,
		}
	}
	return logs
}

func medianDuration(events []database.UserEvent) int {
	var durations []int
	for _, e := range events {
		if e.DurationMs != nil {
			durations = append(durations, *e.DurationMs)
		}
	}
	if len(durations) == 0 {
		return placeholderDurationMs
	}
	sort.Ints(durations)
	return durations[len(durations)/2]
}
