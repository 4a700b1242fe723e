// Package pipeline runs the document processing job: fetch the uploaded PDF,
// extract its text, generate study materials and move the document through
// its status machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"studyforge/internal/domain"
	"studyforge/internal/extract"
	"studyforge/internal/stats"
	"studyforge/internal/storage"
	"studyforge/internal/store"
)

// materialGenerator is the slice of studygen.Generator the pipeline needs.
type materialGenerator interface {
	Flashcards(ctx context.Context, documentID, text string) ([]domain.Flashcard, error)
	Quiz(ctx context.Context, documentID, text string, kind domain.QuizKind, difficulty domain.Difficulty) (domain.Quiz, error)
	Summary(ctx context.Context, documentID, text string) (domain.Summary, error)
}

// Processor executes one document job end to end.
type Processor struct {
	store   store.Store
	objects storage.ObjectStore
	gen     materialGenerator
	stats   *stats.Engine

	// extractText is swappable for tests.
	extractText func(path string) (string, error)
}

func NewProcessor(s store.Store, objects storage.ObjectStore, gen materialGenerator, engine *stats.Engine) *Processor {
	return &Processor{
		store:       s,
		objects:     objects,
		gen:         gen,
		stats:       engine,
		extractText: extract.Text,
	}
}

// Process moves a pending document to completed or failed, and picks a
// redelivered processing document back up. A document-level
// failure is recorded on the document and reported as success to the queue;
// only infrastructure errors propagate so the queue can retry them.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, ok, err := p.store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if !ok {
		slog.Warn("document job for unknown document", "documentId", documentID)
		return nil
	}
	if doc.Status.Terminal() {
		slog.Info("document already in terminal state", "documentId", documentID, "status", doc.Status)
		return nil
	}
	if doc.Status == domain.StatusProcessing {
		// A reclaimed job whose previous worker died mid-run. The status row
		// is already processing, so resume from the top; rerunning may leave
		// duplicate artifacts but never strands the document.
		slog.Warn("resuming document left in processing", "documentId", documentID)
	} else if err := p.store.SetDocumentStatus(documentID, domain.StatusProcessing, ""); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// The document moved between the read above and this update.
			// Whoever moved it owns it now.
			return nil
		}
		return fmt.Errorf("mark processing %s: %w", documentID, err)
	}

	text, err := p.fetchAndExtract(ctx, doc)
	if err != nil {
		p.fail(documentID, fmt.Sprintf("text extraction failed: %v", err))
		return nil
	}
	if text == "" {
		p.fail(documentID, "no extractable text in document")
		return nil
	}

	if err := p.generateMaterials(ctx, doc, text); err != nil {
		p.fail(documentID, err.Error())
		return nil
	}

	if err := p.store.SetDocumentStatus(documentID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed %s: %w", documentID, err)
	}
	slog.Info("document processed", "documentId", documentID)
	return nil
}

func (p *Processor) fetchAndExtract(ctx context.Context, doc domain.Document) (string, error) {
	obj, err := p.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("fetch object: %w", err)
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "studyforge-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return p.extractText(tmp.Name())
}

func (p *Processor) generateMaterials(ctx context.Context, doc domain.Document, text string) error {
	cards, err := p.gen.Flashcards(ctx, doc.ID, text)
	if err != nil {
		return fmt.Errorf("flashcard generation failed: %w", err)
	}
	if len(cards) == 0 {
		slog.Warn("no flashcards generated", "documentId", doc.ID)
	} else {
		if err := p.store.SaveFlashcards(cards); err != nil {
			return fmt.Errorf("save flashcards: %w", err)
		}
		if _, _, err := p.stats.Increment(doc.OwnerID, domain.StatFlashcardsCreated, int64(len(cards))); err != nil {
			slog.Error("flashcardsCreated increment failed", "documentId", doc.ID, "error", err)
		}
	}

	for _, kind := range []domain.QuizKind{domain.QuizMultipleChoice, domain.QuizTrueFalse} {
		quiz, err := p.gen.Quiz(ctx, doc.ID, text, kind, domain.DifficultyMedium)
		if err != nil {
			return fmt.Errorf("%s quiz generation failed: %w", kind, err)
		}
		if err := p.store.SaveQuiz(quiz); err != nil {
			return fmt.Errorf("save %s quiz: %w", kind, err)
		}
	}

	summary, err := p.gen.Summary(ctx, doc.ID, text)
	if err != nil {
		return fmt.Errorf("summary generation failed: %w", err)
	}
	if err := p.store.SaveSummary(summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (p *Processor) fail(documentID, reason string) {
	slog.Error("document processing failed", "documentId", documentID, "reason", reason)
	if err := p.store.SetDocumentStatus(documentID, domain.StatusFailed, reason); err != nil {
		slog.Error("could not mark document failed", "documentId", documentID, "error", err)
	}
}
