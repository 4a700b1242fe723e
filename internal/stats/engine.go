// Package stats maintains per-user study counters and awards badges when a
// counter crosses a badge threshold.
package stats

import (
	"errors"
	"fmt"
	"time"

	"studyforge/internal/domain"
	"studyforge/internal/store"
	"studyforge/internal/util"
)

// Engine wraps the store with the badge-evaluation sweep that runs after
// every stat mutation.
type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// Increment bumps one counter and returns the updated stats along with any
// badges earned by the change.
func (e *Engine) Increment(userID string, stat domain.StatName, amount int64) (domain.UserStats, []domain.EarnedBadge, error) {
	if amount < 0 {
		return domain.UserStats{}, nil, fmt.Errorf("negative increment %d for %s", amount, stat)
	}
	stats, err := e.store.IncrementUserStat(userID, stat, amount)
	if err != nil {
		return domain.UserStats{}, nil, fmt.Errorf("increment %s: %w", stat, err)
	}
	earned, err := e.evaluateBadges(userID, stats)
	if err != nil {
		return stats, nil, err
	}
	return stats, earned, nil
}

// Set overwrites one counter. Counters only move forward; the store rejects
// a value below the current one inside its own critical section.
func (e *Engine) Set(userID string, stat domain.StatName, value int64) (domain.UserStats, []domain.EarnedBadge, error) {
	if value < 0 {
		return domain.UserStats{}, nil, fmt.Errorf("negative value %d for %s", value, stat)
	}
	stats, err := e.store.SetUserStat(userID, stat, value)
	if errors.Is(err, store.ErrStatDecrease) {
		return domain.UserStats{}, nil, fmt.Errorf("%s may not decrease to %d: %w", stat, value, err)
	}
	if err != nil {
		return domain.UserStats{}, nil, fmt.Errorf("set %s: %w", stat, err)
	}
	earned, err := e.evaluateBadges(userID, stats)
	if err != nil {
		return stats, nil, err
	}
	return stats, earned, nil
}

// evaluateBadges sweeps all badges against the current counters and records
// any newly crossed thresholds. Store-level uniqueness makes the sweep safe
// to repeat.
func (e *Engine) evaluateBadges(userID string, stats domain.UserStats) ([]domain.EarnedBadge, error) {
	badges, err := e.store.ListBadges()
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	existing, err := e.store.ListAchievementsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	earnedIDs := make(map[string]bool, len(existing))
	for _, a := range existing {
		earnedIDs[a.BadgeID] = true
	}

	var earned []domain.EarnedBadge
	for _, badge := range badges {
		if earnedIDs[badge.ID] {
			continue
		}
		counter, ok := badge.Category.CounterFor()
		if !ok {
			continue
		}
		if stats.Counter(counter) < badge.RequiredCount {
			continue
		}
		achievement := domain.UserAchievement{
			ID:       util.NewID(),
			UserID:   userID,
			BadgeID:  badge.ID,
			EarnedAt: time.Now().UTC(),
		}
		created, err := e.store.CreateAchievement(achievement)
		if err != nil {
			return earned, fmt.Errorf("create achievement: %w", err)
		}
		if created {
			earned = append(earned, domain.EarnedBadge{Achievement: achievement, Badge: badge})
		}
	}
	return earned, nil
}
