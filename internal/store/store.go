package store

import (
	"errors"

	"studyforge/internal/domain"
)

// ErrInvalidTransition is returned when a document status update would leave
// a terminal state or move backwards in the pending -> processing ->
// completed/failed machine.
var ErrInvalidTransition = errors.New("invalid document status transition")

// ErrStatDecrease is returned by SetUserStat when the new value is below the
// stored counter. Counters only move forward.
var ErrStatDecrease = errors.New("stat counter may not decrease")

// Store defines persistence operations consumed by the core. Implementations
// must keep stat increments atomic per user and must never create two
// achievements for the same (userID, badgeID) pair.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// documents
	SaveDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByOwner(ownerID string) ([]domain.Document, error)
	SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error

	// artifacts
	SaveFlashcards(cards []domain.Flashcard) error
	ListFlashcardsByDocument(documentID string) ([]domain.Flashcard, error)
	SaveQuiz(domain.Quiz) error
	ListQuizzesByDocument(documentID string) ([]domain.Quiz, error)
	SaveSummary(domain.Summary) error
	GetSummaryByDocument(documentID string) (domain.Summary, bool, error)

	// user stats
	GetUserStats(userID string) (domain.UserStats, bool, error)
	IncrementUserStat(userID string, stat domain.StatName, amount int64) (domain.UserStats, error)
	SetUserStat(userID string, stat domain.StatName, value int64) (domain.UserStats, error)

	// badges & achievements
	SeedBadges(badges []domain.Badge) error
	ListBadges() ([]domain.Badge, error)
	ListBadgesByCategory(category domain.BadgeCategory) ([]domain.Badge, error)
	GetBadge(id string) (domain.Badge, bool, error)
	CreateAchievement(a domain.UserAchievement) (bool, error)
	ListAchievementsByUser(userID string) ([]domain.UserAchievement, error)
}

// allowedTransition encodes the one-directional document state machine.
func allowedTransition(from, to domain.DocumentStatus) bool {
	switch from {
	case domain.StatusPending:
		return to == domain.StatusProcessing || to == domain.StatusFailed
	case domain.StatusProcessing:
		return to == domain.StatusCompleted || to == domain.StatusFailed
	default:
		return false
	}
}
