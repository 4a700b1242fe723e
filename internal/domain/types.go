package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether a document can no longer change status.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type QuizKind string

const (
	QuizMultipleChoice QuizKind = "multiple-choice"
	QuizTrueFalse      QuizKind = "true-false"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Document struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"ownerId"`
	DisplayName  string         `json:"displayName"`
	StorageKey   string         `json:"-"`
	ByteSize     int64          `json:"byteSize"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type Flashcard struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Front      string `json:"front"`
	Back       string `json:"back"`
}

// Question is one quiz item. Multiple-choice questions carry Options and
// AnswerIndex; true/false questions carry AnswerBool and no options.
type Question struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	AnswerIndex *int     `json:"answerIndex,omitempty"`
	AnswerBool  *bool    `json:"answerBool,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Valid checks the answer invariant for the given quiz kind.
func (q Question) Valid(kind QuizKind) bool {
	if q.Prompt == "" {
		return false
	}
	switch kind {
	case QuizMultipleChoice:
		if q.AnswerIndex == nil || len(q.Options) == 0 {
			return false
		}
		return *q.AnswerIndex >= 0 && *q.AnswerIndex < len(q.Options)
	case QuizTrueFalse:
		return q.AnswerBool != nil && len(q.Options) == 0
	default:
		return false
	}
}

type Quiz struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Kind       QuizKind   `json:"kind"`
	Difficulty Difficulty `json:"difficulty"`
	Questions  []Question `json:"questions"`
}

type Term struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Summary struct {
	ID          string   `json:"id"`
	DocumentID  string   `json:"documentId"`
	KeyConcepts []string `json:"keyConcepts"`
	Terminology []Term   `json:"terminology"`
	Narrative   string   `json:"narrative"`
}

// StatName identifies one of the per-user counters. The set is closed so
// that store implementations can map names to columns safely.
type StatName string

const (
	StatDocumentsUploaded     StatName = "documentsUploaded"
	StatFlashcardsCreated     StatName = "flashcardsCreated"
	StatFlashcardsReviewed    StatName = "flashcardsReviewed"
	StatQuizzesCompleted      StatName = "quizzesCompleted"
	StatQuizQuestionsAnswered StatName = "quizQuestionsAnswered"
	StatCorrectAnswers        StatName = "correctAnswers"
	StatStudyMinutes          StatName = "totalStudyTimeMinutes"
)

// ParseStatName validates a wire-level stat name.
func ParseStatName(name string) (StatName, bool) {
	switch StatName(name) {
	case StatDocumentsUploaded, StatFlashcardsCreated, StatFlashcardsReviewed,
		StatQuizzesCompleted, StatQuizQuestionsAnswered, StatCorrectAnswers,
		StatStudyMinutes:
		return StatName(name), true
	default:
		return "", false
	}
}

type UserStats struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	DocumentsUploaded     int64     `json:"documentsUploaded"`
	FlashcardsCreated     int64     `json:"flashcardsCreated"`
	FlashcardsReviewed    int64     `json:"flashcardsReviewed"`
	QuizzesCompleted      int64     `json:"quizzesCompleted"`
	QuizQuestionsAnswered int64     `json:"quizQuestionsAnswered"`
	CorrectAnswers        int64     `json:"correctAnswers"`
	TotalStudyMinutes     int64     `json:"totalStudyTimeMinutes"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

// Counter returns the value of the named counter.
func (s UserStats) Counter(name StatName) int64 {
	switch name {
	case StatDocumentsUploaded:
		return s.DocumentsUploaded
	case StatFlashcardsCreated:
		return s.FlashcardsCreated
	case StatFlashcardsReviewed:
		return s.FlashcardsReviewed
	case StatQuizzesCompleted:
		return s.QuizzesCompleted
	case StatQuizQuestionsAnswered:
		return s.QuizQuestionsAnswered
	case StatCorrectAnswers:
		return s.CorrectAnswers
	case StatStudyMinutes:
		return s.TotalStudyMinutes
	default:
		return 0
	}
}

type BadgeCategory string

const (
	CategoryDocument  BadgeCategory = "document"
	CategoryFlashcard BadgeCategory = "flashcard"
	CategoryQuiz      BadgeCategory = "quiz"
	CategoryStudy     BadgeCategory = "study"
)

// CounterFor maps a badge category to the stat counter that drives it.
func (c BadgeCategory) CounterFor() (StatName, bool) {
	switch c {
	case CategoryDocument:
		return StatDocumentsUploaded, true
	case CategoryFlashcard:
		return StatFlashcardsReviewed, true
	case CategoryQuiz:
		return StatQuizzesCompleted, true
	case CategoryStudy:
		return StatStudyMinutes, true
	default:
		return "", false
	}
}

// Badge is static reference data seeded at process start.
type Badge struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Icon          string        `json:"icon"`
	Category      BadgeCategory `json:"category"`
	RequiredCount int64         `json:"requiredCount"`
}

// UserAchievement records that a user earned a badge. At most one exists per
// (UserID, BadgeID) pair; badges are never revoked.
type UserAchievement struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// EarnedBadge pairs a freshly created achievement with its badge details so
// callers can surface celebratory UI.
type EarnedBadge struct {
	Achievement UserAchievement `json:"achievement"`
	Badge       Badge           `json:"badge"`
}
