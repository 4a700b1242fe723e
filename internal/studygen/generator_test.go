package studygen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studyforge/internal/domain"
)

// fakeLLM returns a canned response or error for every call.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func TestFlashcardsParsesAndFiltersBlanks(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"flashcards": [
		{"front": "What is osmosis?", "back": "Diffusion of water across a membrane."},
		{"front": "  ", "back": "orphaned back"},
		{"front": "Define enzyme", "back": "A biological catalyst."}
	]}`}, 0)

	cards, err := g.Flashcards(context.Background(), "doc-1", "some text")
	if err != nil {
		t.Fatalf("flashcards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	for _, c := range cards {
		if c.DocumentID != "doc-1" {
			t.Fatalf("documentID = %q, want doc-1", c.DocumentID)
		}
		if c.ID == "" {
			t.Fatalf("card missing id")
		}
	}
}

func TestFlashcardsEmptyListIsNotAnError(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"flashcards": []}`}, 0)
	cards, err := g.Flashcards(context.Background(), "doc-1", "text")
	if err != nil {
		t.Fatalf("flashcards: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("cards = %d, want 0", len(cards))
	}
}

func TestFlashcardsMalformedJSON(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: "here are your flashcards!"}, 0)
	_, err := g.Flashcards(context.Background(), "doc-1", "text")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %T, want *GenerationError", err)
	}
	if genErr.Op != "flashcards" {
		t.Fatalf("op = %q, want flashcards", genErr.Op)
	}
}

func TestQuizDropsInvalidMultipleChoiceQuestions(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"questions": [
		{"prompt": "Good one", "options": ["a", "b", "c", "d"], "correctAnswer": 2, "explanation": "because"},
		{"prompt": "Index out of range", "options": ["a", "b", "c", "d"], "correctAnswer": 4},
		{"prompt": "Wrong option count", "options": ["a", "b"], "correctAnswer": 0},
		{"prompt": "Boolean answer", "options": ["a", "b", "c", "d"], "correctAnswer": true},
		{"prompt": "Also good", "options": ["w", "x", "y", "z"], "correctAnswer": 0}
	]}`}, 0)

	quiz, err := g.Quiz(context.Background(), "doc-1", "text", domain.QuizMultipleChoice, domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(quiz.Questions))
	}
	for _, q := range quiz.Questions {
		if !q.Valid(domain.QuizMultipleChoice) {
			t.Fatalf("invalid question survived: %+v", q)
		}
	}
	if quiz.Kind != domain.QuizMultipleChoice || quiz.Difficulty != domain.DifficultyMedium {
		t.Fatalf("quiz kind/difficulty = %s/%s", quiz.Kind, quiz.Difficulty)
	}
}

func TestQuizTrueFalseRejectsIndexAnswers(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"questions": [
		{"prompt": "Water boils at 100C at sea level.", "correctAnswer": true},
		{"prompt": "Index answer", "correctAnswer": 1},
		{"prompt": "The sun orbits the earth.", "correctAnswer": false, "explanation": "heliocentrism"}
	]}`}, 0)

	quiz, err := g.Quiz(context.Background(), "doc-1", "text", domain.QuizTrueFalse, domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(quiz.Questions))
	}
	for _, q := range quiz.Questions {
		if q.AnswerBool == nil || len(q.Options) != 0 {
			t.Fatalf("true/false question malformed: %+v", q)
		}
	}
}

func TestQuizAllInvalidQuestionsIsAnError(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"questions": [{"prompt": "bad", "options": ["a"], "correctAnswer": 0}]}`}, 0)
	_, err := g.Quiz(context.Background(), "doc-1", "text", domain.QuizMultipleChoice, domain.DifficultyMedium)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %T, want *GenerationError", err)
	}
}

func TestSummaryStripsCodeFences(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: "```json\n" + `{"keyConcepts": ["cells"], "terminology": [{"term": "mitosis", "definition": "cell division"}], "narrative": "Cells divide."}` + "\n```"}, 0)

	summary, err := g.Summary(context.Background(), "doc-1", "text")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Narrative != "Cells divide." {
		t.Fatalf("narrative = %q", summary.Narrative)
	}
	if len(summary.KeyConcepts) != 1 || len(summary.Terminology) != 1 {
		t.Fatalf("concepts/terms = %d/%d, want 1/1", len(summary.KeyConcepts), len(summary.Terminology))
	}
}

func TestSummaryEmptyNarrativeIsAnError(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"keyConcepts": [], "terminology": [], "narrative": "  "}`}, 0)
	_, err := g.Summary(context.Background(), "doc-1", "text")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %T, want *GenerationError", err)
	}
	if genErr.Op != "summary" {
		t.Fatalf("op = %q, want summary", genErr.Op)
	}
}

func TestGeneratorClipsLongInput(t *testing.T) {
	g := NewGenerator(&fakeLLM{response: `{"flashcards": []}`}, 100)
	long := strings.Repeat("a", 500)
	if got := g.clip(long); len(got) != 100 {
		t.Fatalf("clipped length = %d, want 100", len(got))
	}
	short := "short text"
	if got := g.clip(short); got != short {
		t.Fatalf("short input was modified: %q", got)
	}
}
