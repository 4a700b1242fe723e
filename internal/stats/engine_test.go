package stats

import (
	"testing"

	"studyforge/internal/domain"
	"studyforge/internal/store"
)

func newEngineWithBadges(t *testing.T, badges []domain.Badge) (*Engine, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	if err := m.SeedBadges(badges); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	return NewEngine(m), m
}

func TestIncrementAwardsBadgeAtExactThreshold(t *testing.T) {
	badge := domain.Badge{ID: "b-10", Name: "Dedicated Reviewer", Category: domain.CategoryFlashcard, RequiredCount: 10}
	engine, _ := newEngineWithBadges(t, []domain.Badge{badge})

	stats, earned, err := engine.Increment("user-1", domain.StatFlashcardsReviewed, 9)
	if err != nil {
		t.Fatalf("increment to 9: %v", err)
	}
	if stats.FlashcardsReviewed != 9 {
		t.Fatalf("flashcardsReviewed = %d, want 9", stats.FlashcardsReviewed)
	}
	if len(earned) != 0 {
		t.Fatalf("earned = %d badges below threshold, want 0", len(earned))
	}

	stats, earned, err = engine.Increment("user-1", domain.StatFlashcardsReviewed, 1)
	if err != nil {
		t.Fatalf("increment to 10: %v", err)
	}
	if stats.FlashcardsReviewed != 10 {
		t.Fatalf("flashcardsReviewed = %d, want 10", stats.FlashcardsReviewed)
	}
	if len(earned) != 1 || earned[0].Badge.ID != "b-10" {
		t.Fatalf("earned = %+v, want exactly badge b-10", earned)
	}
	if earned[0].Achievement.UserID != "user-1" || earned[0].Achievement.BadgeID != "b-10" {
		t.Fatalf("achievement = %+v", earned[0].Achievement)
	}
}

func TestIncrementDoesNotReawardEarnedBadge(t *testing.T) {
	badge := domain.Badge{ID: "b-1", Name: "First Steps", Category: domain.CategoryDocument, RequiredCount: 1}
	engine, m := newEngineWithBadges(t, []domain.Badge{badge})

	_, earned, err := engine.Increment("user-1", domain.StatDocumentsUploaded, 1)
	if err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("earned = %d, want 1", len(earned))
	}

	_, earned, err = engine.Increment("user-1", domain.StatDocumentsUploaded, 1)
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if len(earned) != 0 {
		t.Fatalf("badge was awarded twice")
	}
	achievements, _ := m.ListAchievementsByUser("user-1")
	if len(achievements) != 1 {
		t.Fatalf("achievements = %d, want 1", len(achievements))
	}
}

func TestIncrementCanAwardMultipleBadgesAtOnce(t *testing.T) {
	badges := []domain.Badge{
		{ID: "b-1", Category: domain.CategoryQuiz, RequiredCount: 1},
		{ID: "b-5", Category: domain.CategoryQuiz, RequiredCount: 5},
	}
	engine, _ := newEngineWithBadges(t, badges)

	_, earned, err := engine.Increment("user-1", domain.StatQuizzesCompleted, 5)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if len(earned) != 2 {
		t.Fatalf("earned = %d, want 2", len(earned))
	}
}

func TestIncrementRejectsNegativeAmount(t *testing.T) {
	engine, _ := newEngineWithBadges(t, nil)
	if _, _, err := engine.Increment("user-1", domain.StatCorrectAnswers, -1); err == nil {
		t.Fatalf("expected error for negative increment")
	}
}

func TestSetRejectsDecreasingCounter(t *testing.T) {
	engine, _ := newEngineWithBadges(t, nil)
	if _, _, err := engine.Set("user-1", domain.StatStudyMinutes, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, _, err := engine.Set("user-1", domain.StatStudyMinutes, 10); err == nil {
		t.Fatalf("expected error for decreasing counter")
	}
}

func TestSetAwardsStudyBadge(t *testing.T) {
	badge := domain.Badge{ID: "b-hour", Category: domain.CategoryStudy, RequiredCount: 60}
	engine, _ := newEngineWithBadges(t, []domain.Badge{badge})

	_, earned, err := engine.Set("user-1", domain.StatStudyMinutes, 75)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(earned) != 1 || earned[0].Badge.ID != "b-hour" {
		t.Fatalf("earned = %+v, want badge b-hour", earned)
	}
}

func TestDefaultBadgesCoverAllCategories(t *testing.T) {
	seen := map[domain.BadgeCategory]bool{}
	ids := map[string]bool{}
	for _, b := range DefaultBadges() {
		if ids[b.ID] {
			t.Fatalf("duplicate badge id %s", b.ID)
		}
		ids[b.ID] = true
		if b.RequiredCount <= 0 {
			t.Fatalf("badge %s has non-positive requiredCount", b.ID)
		}
		if _, ok := b.Category.CounterFor(); !ok {
			t.Fatalf("badge %s has unmapped category %s", b.ID, b.Category)
		}
		seen[b.Category] = true
	}
	for _, c := range []domain.BadgeCategory{domain.CategoryDocument, domain.CategoryFlashcard, domain.CategoryQuiz, domain.CategoryStudy} {
		if !seen[c] {
			t.Fatalf("no badges in category %s", c)
		}
	}
}
