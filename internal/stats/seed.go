package stats

import "studyforge/internal/domain"

// DefaultBadges is the built-in badge catalogue, seeded at process start.
func DefaultBadges() []domain.Badge {
	return []domain.Badge{
		{ID: "badge-first-upload", Name: "First Steps", Description: "Upload your first document", Icon: "📄", Category: domain.CategoryDocument, RequiredCount: 1},
		{ID: "badge-collector", Name: "Collector", Description: "Upload 5 documents", Icon: "📚", Category: domain.CategoryDocument, RequiredCount: 5},
		{ID: "badge-librarian", Name: "Librarian", Description: "Upload 25 documents", Icon: "🏛️", Category: domain.CategoryDocument, RequiredCount: 25},

		{ID: "badge-first-review", Name: "Card Flipper", Description: "Review your first flashcard", Icon: "🃏", Category: domain.CategoryFlashcard, RequiredCount: 1},
		{ID: "badge-reviewer", Name: "Dedicated Reviewer", Description: "Review 10 flashcards", Icon: "🔁", Category: domain.CategoryFlashcard, RequiredCount: 10},
		{ID: "badge-memorizer", Name: "Memory Master", Description: "Review 100 flashcards", Icon: "🧠", Category: domain.CategoryFlashcard, RequiredCount: 100},

		{ID: "badge-first-quiz", Name: "Quiz Taker", Description: "Complete your first quiz", Icon: "✏️", Category: domain.CategoryQuiz, RequiredCount: 1},
		{ID: "badge-quiz-regular", Name: "Quiz Regular", Description: "Complete 10 quizzes", Icon: "🎯", Category: domain.CategoryQuiz, RequiredCount: 10},
		{ID: "badge-quiz-champion", Name: "Quiz Champion", Description: "Complete 50 quizzes", Icon: "🏆", Category: domain.CategoryQuiz, RequiredCount: 50},

		{ID: "badge-first-hour", Name: "Getting Started", Description: "Study for 60 minutes total", Icon: "⏱️", Category: domain.CategoryStudy, RequiredCount: 60},
		{ID: "badge-marathoner", Name: "Marathoner", Description: "Study for 600 minutes total", Icon: "🏃", Category: domain.CategoryStudy, RequiredCount: 600},
		{ID: "badge-scholar", Name: "Scholar", Description: "Study for 3000 minutes total", Icon: "🎓", Category: domain.CategoryStudy, RequiredCount: 3000},
	}
}
