// Package studygen turns extracted document text into study materials by
// prompting an LLM for structured JSON and validating what comes back.
package studygen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studyforge/internal/ai"
	"studyforge/internal/domain"
	"studyforge/internal/util"
)

const (
	defaultPromptCharLimit = 15000
	flashcardTarget        = 10
	quizQuestionTarget     = 10
	optionCount            = 4
)

// GenerationError reports which generation step failed.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces flashcards, quizzes and summaries from document text.
type Generator struct {
	llm             ai.TextGenerator
	promptCharLimit int
}

// NewGenerator builds a Generator. promptCharLimit caps how much document
// text is embedded in a prompt; zero selects the default.
func NewGenerator(llm ai.TextGenerator, promptCharLimit int) *Generator {
	if promptCharLimit <= 0 {
		promptCharLimit = defaultPromptCharLimit
	}
	return &Generator{llm: llm, promptCharLimit: promptCharLimit}
}

const materialsSystemPrompt = "You are a study assistant. Respond with valid JSON only, no markdown fences, no commentary."

// Flashcards asks the model for front/back card pairs. An empty list is not
// an error; the caller decides how to treat it.
func (g *Generator) Flashcards(ctx context.Context, documentID, text string) ([]domain.Flashcard, error) {
	userPrompt := fmt.Sprintf(
		"Create about %d flashcards from the study material below. "+
			"Respond with a JSON object {\"flashcards\": [{\"front\": \"...\", \"back\": \"...\"}]}. "+
			"Each front is a question or term, each back the answer or definition.\n\nMaterial:\n%s",
		flashcardTarget, g.clip(text))

	raw, err := g.llm.GenerateJSON(ctx, materialsSystemPrompt, userPrompt)
	if err != nil {
		return nil, &GenerationError{Op: "flashcards", Err: err}
	}
	var parsed struct {
		Flashcards []struct {
			Front string `json:"front"`
			Back  string `json:"back"`
		} `json:"flashcards"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return nil, &GenerationError{Op: "flashcards", Err: err}
	}
	cards := make([]domain.Flashcard, 0, len(parsed.Flashcards))
	for _, c := range parsed.Flashcards {
		front := strings.TrimSpace(c.Front)
		back := strings.TrimSpace(c.Back)
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, domain.Flashcard{
			ID:         util.NewID(),
			DocumentID: documentID,
			Front:      front,
			Back:       back,
		})
	}
	return cards, nil
}

// Quiz asks the model for questions of the given kind and difficulty.
// Questions that fail validation are dropped; a quiz with no surviving
// questions is an error.
func (g *Generator) Quiz(ctx context.Context, documentID string, text string, kind domain.QuizKind, difficulty domain.Difficulty) (domain.Quiz, error) {
	var userPrompt string
	switch kind {
	case domain.QuizTrueFalse:
		userPrompt = fmt.Sprintf(
			"Create about %d true/false questions of %s difficulty from the study material below. "+
				"Respond with a JSON object {\"questions\": [{\"prompt\": \"...\", \"correctAnswer\": true, \"explanation\": \"...\"}]}. "+
				"correctAnswer must be a JSON boolean.\n\nMaterial:\n%s",
			quizQuestionTarget, difficulty, g.clip(text))
	default:
		userPrompt = fmt.Sprintf(
			"Create about %d multiple-choice questions of %s difficulty from the study material below. "+
				"Respond with a JSON object {\"questions\": [{\"prompt\": \"...\", \"options\": [\"...\", \"...\", \"...\", \"...\"], \"correctAnswer\": 0, \"explanation\": \"...\"}]}. "+
				"Each question has exactly %d options and correctAnswer is the zero-based index of the right one.\n\nMaterial:\n%s",
			quizQuestionTarget, difficulty, optionCount, g.clip(text))
	}

	raw, err := g.llm.GenerateJSON(ctx, materialsSystemPrompt, userPrompt)
	if err != nil {
		return domain.Quiz{}, &GenerationError{Op: "quiz", Err: err}
	}
	var parsed struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return domain.Quiz{}, &GenerationError{Op: "quiz", Err: err}
	}

	questions := make([]domain.Question, 0, len(parsed.Questions))
	for _, rq := range parsed.Questions {
		q, ok := rq.toDomain(kind)
		if !ok {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return domain.Quiz{}, &GenerationError{Op: "quiz", Err: fmt.Errorf("no valid %s questions in response", kind)}
	}
	return domain.Quiz{
		ID:         util.NewID(),
		DocumentID: documentID,
		Kind:       kind,
		Difficulty: difficulty,
		Questions:  questions,
	}, nil
}

// Summary asks the model for key concepts, terminology and a narrative.
func (g *Generator) Summary(ctx context.Context, documentID, text string) (domain.Summary, error) {
	userPrompt := fmt.Sprintf(
		"Summarize the study material below. Respond with a JSON object "+
			"{\"keyConcepts\": [\"...\"], \"terminology\": [{\"term\": \"...\", \"definition\": \"...\"}], \"narrative\": \"...\"}. "+
			"The narrative is a few paragraphs of prose.\n\nMaterial:\n%s",
		g.clip(text))

	raw, err := g.llm.GenerateJSON(ctx, materialsSystemPrompt, userPrompt)
	if err != nil {
		return domain.Summary{}, &GenerationError{Op: "summary", Err: err}
	}
	var parsed struct {
		KeyConcepts []string `json:"keyConcepts"`
		Terminology []struct {
			Term       string `json:"term"`
			Definition string `json:"definition"`
		} `json:"terminology"`
		Narrative string `json:"narrative"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return domain.Summary{}, &GenerationError{Op: "summary", Err: err}
	}
	if strings.TrimSpace(parsed.Narrative) == "" {
		return domain.Summary{}, &GenerationError{Op: "summary", Err: fmt.Errorf("empty narrative in response")}
	}
	terms := make([]domain.Term, 0, len(parsed.Terminology))
	for _, t := range parsed.Terminology {
		if strings.TrimSpace(t.Term) == "" {
			continue
		}
		terms = append(terms, domain.Term{Term: strings.TrimSpace(t.Term), Definition: strings.TrimSpace(t.Definition)})
	}
	return domain.Summary{
		ID:          util.NewID(),
		DocumentID:  documentID,
		KeyConcepts: parsed.KeyConcepts,
		Terminology: terms,
		Narrative:   strings.TrimSpace(parsed.Narrative),
	}, nil
}

// rawQuestion tolerates correctAnswer being either an index or a boolean.
type rawQuestion struct {
	Prompt        string          `json:"prompt"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
}

func (rq rawQuestion) toDomain(kind domain.QuizKind) (domain.Question, bool) {
	q := domain.Question{
		Prompt:      strings.TrimSpace(rq.Prompt),
		Explanation: strings.TrimSpace(rq.Explanation),
	}
	if q.Prompt == "" {
		return domain.Question{}, false
	}
	switch kind {
	case domain.QuizMultipleChoice:
		if len(rq.Options) != optionCount {
			return domain.Question{}, false
		}
		var idx int
		if err := json.Unmarshal(rq.CorrectAnswer, &idx); err != nil {
			return domain.Question{}, false
		}
		q.Options = rq.Options
		q.AnswerIndex = &idx
	case domain.QuizTrueFalse:
		var b bool
		if err := json.Unmarshal(rq.CorrectAnswer, &b); err != nil {
			return domain.Question{}, false
		}
		q.AnswerBool = &b
	default:
		return domain.Question{}, false
	}
	if !q.Valid(kind) {
		return domain.Question{}, false
	}
	return q, true
}

func (g *Generator) clip(text string) string {
	if len(text) <= g.promptCharLimit {
		return text
	}
	clipped := text[:g.promptCharLimit]
	// Avoid splitting a multi-byte rune at the cut point.
	for len(clipped) > 0 && clipped[len(clipped)-1] >= 0x80 && clipped[len(clipped)-1] < 0xC0 {
		clipped = clipped[:len(clipped)-1]
	}
	if len(clipped) > 0 && clipped[len(clipped)-1] >= 0xC0 {
		clipped = clipped[:len(clipped)-1]
	}
	return clipped
}

// stripCodeFences removes a markdown code fence wrapper if the model added
// one despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
