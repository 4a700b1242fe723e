package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type DocumentModel struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"not null;index"`
	DisplayName  string `gorm:"not null"`
	StorageKey   string
	ByteSize     int64  `gorm:"not null"`
	Status       string `gorm:"not null"`
	ErrorMessage string
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type FlashcardModel struct {
	ID         string `gorm:"primaryKey"`
	DocumentID string `gorm:"not null;index"`
	Front      string `gorm:"type:text;not null"`
	Back       string `gorm:"type:text;not null"`
}

type QuizModel struct {
	ID         string         `gorm:"primaryKey"`
	DocumentID string         `gorm:"not null;index"`
	Kind       string         `gorm:"not null"`
	Difficulty string         `gorm:"not null"`
	Questions  datatypes.JSON `gorm:"type:jsonb;not null"`
}

type SummaryModel struct {
	ID          string         `gorm:"primaryKey"`
	DocumentID  string         `gorm:"not null;uniqueIndex"`
	KeyConcepts datatypes.JSON `gorm:"type:jsonb;not null"`
	Terminology datatypes.JSON `gorm:"type:jsonb;not null"`
	Narrative   string         `gorm:"type:text;not null"`
}

type UserStatsModel struct {
	ID                    string `gorm:"primaryKey"`
	UserID                string `gorm:"not null;uniqueIndex"`
	DocumentsUploaded     int64  `gorm:"not null;default:0"`
	FlashcardsCreated     int64  `gorm:"not null;default:0"`
	FlashcardsReviewed    int64  `gorm:"not null;default:0"`
	QuizzesCompleted      int64  `gorm:"not null;default:0"`
	QuizQuestionsAnswered int64  `gorm:"not null;default:0"`
	CorrectAnswers        int64  `gorm:"not null;default:0"`
	TotalStudyMinutes     int64  `gorm:"not null;default:0"`
	LastUpdated           time.Time
}

type BadgeModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Description   string
	Icon          string
	Category      string `gorm:"not null;index"`
	RequiredCount int64  `gorm:"not null"`
	Position      int    `gorm:"not null;default:0"`
}

// UserAchievementModel carries the composite unique index that backs the
// at-most-once award invariant.
type UserAchievementModel struct {
	ID       string    `gorm:"primaryKey"`
	UserID   string    `gorm:"not null;uniqueIndex:idx_user_badge"`
	BadgeID  string    `gorm:"not null;uniqueIndex:idx_user_badge"`
	EarnedAt time.Time `gorm:"not null"`
}
