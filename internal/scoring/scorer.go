// Package scoring computes per-contact engagement scores from attendance
// and email activity. Scores are derived data: recomputing them is always
// safe and always yields the same number for the same activity.
package scoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/config"
	"github.com/ignite/eventcrm/internal/pkg/distlock"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// batchLockKey guards ScoreAll so only one batch runs platform-wide.
const batchLockKey = "eventcrm:scoring:batch"

// batchLockTTL must outlive a full batch; the run holds a margin well
// beyond the expected runtime rather than extending mid-flight.
const batchLockTTL = 30 * time.Minute

// Repository is the data access contract for the scorer.
type Repository interface {
	// CheckedInCount returns how many events the contact checked in to.
	CheckedInCount(ctx context.Context, contactID string) (int, error)

	// UniqueOpenCount returns how many campaigns the contact opened.
	UniqueOpenCount(ctx context.Context, contactID string) (int, error)

	// LastEngagementAt returns the contact's most recent check-in, open,
	// or click. Nil when the contact has never engaged.
	LastEngagementAt(ctx context.Context, contactID string) (*time.Time, error)

	// UpdateEngagementScore writes the computed score on the contact row.
	UpdateEngagementScore(ctx context.Context, contactID string, score float64) error

	// ContactIDs returns every contact id, for the batch run.
	ContactIDs(ctx context.Context) ([]string, error)
}

// Scorer computes and persists engagement scores.
type Scorer struct {
	repo    Repository
	weights config.ScoringConfig
	rdb     *redis.Client

	// now is swappable for recency tests
	now func() time.Time
}

// NewScorer creates a scorer. The Redis client may be nil when batch runs
// are not used (single-contact scoring needs no lock).
func NewScorer(repo Repository, weights config.ScoringConfig, rdb *redis.Client) *Scorer {
	return &Scorer{repo: repo, weights: weights, rdb: rdb, now: time.Now}
}

// Score recomputes one contact's engagement score and persists it. Running
// it twice without new activity writes the same number twice.
func (s *Scorer) Score(ctx context.Context, contactID string) (float64, error) {
	checkins, err := s.repo.CheckedInCount(ctx, contactID)
	if err != nil {
		return 0, err
	}
	opens, err := s.repo.UniqueOpenCount(ctx, contactID)
	if err != nil {
		return 0, err
	}
	last, err := s.repo.LastEngagementAt(ctx, contactID)
	if err != nil {
		return 0, err
	}

	score := float64(checkins)*s.weights.CheckinWeight + float64(opens)*s.weights.OpenWeight
	if last != nil {
		switch age := s.now().Sub(*last); {
		case age <= 7*24*time.Hour:
			score += s.weights.RecencyBonus7d
		case age <= 30*24*time.Hour:
			score += s.weights.RecencyBonus30d
		}
	}

	if err := s.repo.UpdateEngagementScore(ctx, contactID, score); err != nil {
		return 0, err
	}
	return score, nil
}

// ScoreAll rescores every contact, skipping over per-contact failures, and
// returns how many contacts were processed. The Redis lock makes the batch
// exclusive across all processes: a second caller while one runs gets
// (0, nil) and should simply try again next cycle.
func (s *Scorer) ScoreAll(ctx context.Context) (int, error) {
	processed := 0
	run := func(ctx context.Context) error {
		ids, err := s.repo.ContactIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := s.Score(ctx, id); err != nil {
				logger.Warn("contact scoring failed, continuing",
					"contact_id", id, "error", err.Error())
				continue
			}
			processed++
		}
		logger.Info("engagement scoring batch complete", "processed", processed)
		return nil
	}

	if s.rdb == nil {
		return processed, run(ctx)
	}

	acquired, err := distlock.WithLock(ctx, s.rdb, batchLockKey, batchLockTTL, run)
	if err != nil {
		return processed, err
	}
	if !acquired {
		logger.Info("scoring batch already running elsewhere, skipping")
	}
	return processed, nil
}
