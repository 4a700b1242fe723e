package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"studyforge/internal/auth"
	"studyforge/internal/domain"
	"studyforge/internal/queue"
	"studyforge/internal/stats"
	"studyforge/internal/store"
)

type fakeObjects struct {
	data map[string][]byte
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.data[key] = b
	return nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, documentID string) (queue.JobStatus, error) {
	f.enqueued = append(f.enqueued, documentID)
	return queue.JobStatus{ID: "job-1", DocumentID: documentID, Status: queue.StatusQueued}, nil
}

type fakeQuizGen struct {
	err error
}

func (f *fakeQuizGen) Quiz(ctx context.Context, documentID, text string, kind domain.QuizKind, difficulty domain.Difficulty) (domain.Quiz, error) {
	if f.err != nil {
		return domain.Quiz{}, f.err
	}
	b := true
	return domain.Quiz{
		ID:         "quiz-ondemand",
		DocumentID: documentID,
		Kind:       kind,
		Difficulty: difficulty,
		Questions:  []domain.Question{{Prompt: "p", AnswerBool: &b}},
	}, nil
}

type fakeChat struct{}

func (fakeChat) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "try spaced repetition", nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeQueue) {
	t.Helper()
	m := store.NewMemoryStore()
	if err := m.SeedBadges(stats.DefaultBadges()); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	sessions, err := auth.NewSessions("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	q := &fakeQueue{}
	a, err := New(Config{
		Store:     m,
		Objects:   &fakeObjects{data: map[string][]byte{}},
		Queue:     q,
		Generator: &fakeQuizGen{},
		Chat:      fakeChat{},
		Sessions:  sessions,
		Stats:     stats.NewEngine(m),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.extractText = func(path string) (string, error) { return "extracted text", nil }
	return a, m, q
}

func signUpTestUser(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	user, token, err := a.SignUp(email, "Test User", "hunter22")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if token == "" {
		t.Fatalf("signup returned empty token")
	}
	return user
}

func TestSignUpLoginRoundTrip(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signUpTestUser(t, a, "Study@Example.com")
	if user.Email != "study@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}

	got, token, err := a.Login("study@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login user = %q, want %q", got.ID, user.ID)
	}
	resolved, ok := a.UserFromToken(token)
	if !ok || resolved.ID != user.ID {
		t.Fatalf("token did not resolve to user")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	a, _, _ := newTestApp(t)
	signUpTestUser(t, a, "dup@example.com")
	if _, _, err := a.SignUp("dup@example.com", "", "other-pass"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate signup = %v, want ErrEmailTaken", err)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	a, _, _ := newTestApp(t)
	signUpTestUser(t, a, "user@example.com")
	if _, _, err := a.Login("user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := a.Login("nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user login = %v, want ErrInvalidCredentials", err)
	}
}

func TestUploadDocumentCreatesPendingAndEnqueues(t *testing.T) {
	a, m, q := newTestApp(t)
	user := signUpTestUser(t, a, "uploader@example.com")

	doc, earned, err := a.UploadDocument(context.Background(), user, "My Notes.pdf", strings.NewReader("%PDF-fake"), 9)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("status = %q, want pending", doc.Status)
	}
	if doc.DisplayName != "My Notes.pdf" {
		t.Fatalf("displayName = %q", doc.DisplayName)
	}
	if !strings.HasPrefix(doc.StorageKey, "documents/"+doc.ID+"/") {
		t.Fatalf("storageKey = %q", doc.StorageKey)
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != doc.ID {
		t.Fatalf("enqueued = %v, want [%s]", q.enqueued, doc.ID)
	}
	userStats, _, _ := m.GetUserStats(user.ID)
	if userStats.DocumentsUploaded != 1 {
		t.Fatalf("documentsUploaded = %d, want 1", userStats.DocumentsUploaded)
	}
	// First upload crosses the 1-document badge threshold.
	if len(earned) != 1 {
		t.Fatalf("earned = %d badges, want 1", len(earned))
	}
}

func TestGetDocumentEnforcesOwnership(t *testing.T) {
	a, _, _ := newTestApp(t)
	owner := signUpTestUser(t, a, "owner@example.com")
	intruder := signUpTestUser(t, a, "intruder@example.com")

	doc, _, err := a.UploadDocument(context.Background(), owner, "notes.pdf", strings.NewReader("%PDF"), 4)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := a.GetDocument(intruder, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user get = %v, want ErrForbidden", err)
	}
	if _, err := a.GetDocument(owner, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing get = %v, want ErrNotFound", err)
	}
	if _, err := a.DocumentFlashcards(intruder, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user flashcards = %v, want ErrForbidden", err)
	}
}

func TestDocumentArtifactsReturnErrNoArtifactsWhenEmpty(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signUpTestUser(t, a, "user@example.com")
	doc, _, err := a.UploadDocument(context.Background(), user, "notes.pdf", strings.NewReader("%PDF"), 4)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := a.DocumentFlashcards(user, doc.ID); !errors.Is(err, ErrNoArtifacts) {
		t.Fatalf("flashcards = %v, want ErrNoArtifacts", err)
	}
	if _, err := a.DocumentQuizzes(user, doc.ID); !errors.Is(err, ErrNoArtifacts) {
		t.Fatalf("quizzes = %v, want ErrNoArtifacts", err)
	}
	if _, err := a.DocumentSummary(user, doc.ID); !errors.Is(err, ErrNoArtifacts) {
		t.Fatalf("summary = %v, want ErrNoArtifacts", err)
	}
}

func TestGenerateQuizRequiresCompletedDocument(t *testing.T) {
	a, m, _ := newTestApp(t)
	user := signUpTestUser(t, a, "user@example.com")
	doc, _, err := a.UploadDocument(context.Background(), user, "notes.pdf", strings.NewReader("%PDF"), 4)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := a.GenerateQuiz(context.Background(), user, doc.ID, domain.QuizTrueFalse, domain.DifficultyEasy); !errors.Is(err, ErrDocumentNotReady) {
		t.Fatalf("pending doc quiz = %v, want ErrDocumentNotReady", err)
	}

	if err := m.SetDocumentStatus(doc.ID, domain.StatusProcessing, ""); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := m.SetDocumentStatus(doc.ID, domain.StatusCompleted, ""); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	quiz, err := a.GenerateQuiz(context.Background(), user, doc.ID, domain.QuizTrueFalse, domain.DifficultyEasy)
	if err != nil {
		t.Fatalf("generate quiz: %v", err)
	}
	if quiz.Kind != domain.QuizTrueFalse || quiz.Difficulty != domain.DifficultyEasy {
		t.Fatalf("quiz = %s/%s, want true-false/easy", quiz.Kind, quiz.Difficulty)
	}
	quizzes, err := a.DocumentQuizzes(user, doc.ID)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != 1 {
		t.Fatalf("quizzes = %d, want the generated one persisted", len(quizzes))
	}
}

func TestTrackQuizCompletionUpdatesAllCounters(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signUpTestUser(t, a, "user@example.com")

	userStats, earned, err := a.TrackQuizCompletion(user, 10, 7)
	if err != nil {
		t.Fatalf("track completion: %v", err)
	}
	if userStats.QuizzesCompleted != 1 || userStats.QuizQuestionsAnswered != 10 || userStats.CorrectAnswers != 7 {
		t.Fatalf("stats = %+v", userStats)
	}
	// First completed quiz earns the 1-quiz badge.
	if len(earned) != 1 || earned[0].Badge.Category != domain.CategoryQuiz {
		t.Fatalf("earned = %+v, want one quiz badge", earned)
	}

	if _, _, err := a.TrackQuizCompletion(user, 5, 6); err == nil {
		t.Fatalf("correct > answered was accepted")
	}
}

func TestAddStudyTimeRejectsNonPositiveMinutes(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signUpTestUser(t, a, "user@example.com")
	if _, _, err := a.AddStudyTime(user, 0); err == nil {
		t.Fatalf("zero minutes accepted")
	}
	if _, _, err := a.AddStudyTime(user, -5); err == nil {
		t.Fatalf("negative minutes accepted")
	}
	userStats, _, err := a.AddStudyTime(user, 30)
	if err != nil {
		t.Fatalf("add study time: %v", err)
	}
	if userStats.TotalStudyMinutes != 30 {
		t.Fatalf("totalStudyTimeMinutes = %d, want 30", userStats.TotalStudyMinutes)
	}
}

func TestDashboardAggregates(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signUpTestUser(t, a, "user@example.com")

	for i := 0; i < 7; i++ {
		name := fmt.Sprintf("doc-%d.pdf", i)
		if _, _, err := a.UploadDocument(context.Background(), user, name, strings.NewReader("%PDF"), 4); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}

	dash, err := a.Dashboard(user)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dash.RecentDocuments) != 5 {
		t.Fatalf("recentDocuments = %d, want 5", len(dash.RecentDocuments))
	}
	if dash.RecentDocuments[0].DisplayName != "doc-6.pdf" {
		t.Fatalf("newest document = %q, want doc-6.pdf", dash.RecentDocuments[0].DisplayName)
	}
	if dash.Stats.DocumentsUploaded != 7 {
		t.Fatalf("documentsUploaded = %d, want 7", dash.Stats.DocumentsUploaded)
	}
	// 7 uploads cross the 1-document and 5-document thresholds.
	if dash.BadgesEarned != 2 {
		t.Fatalf("badgesEarned = %d, want 2", dash.BadgesEarned)
	}
	if dash.BadgesTotal != len(stats.DefaultBadges()) {
		t.Fatalf("badgesTotal = %d, want %d", dash.BadgesTotal, len(stats.DefaultBadges()))
	}
}

func TestChatRequiresMessage(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, err := a.Chat(context.Background(), "   "); err == nil {
		t.Fatalf("blank message accepted")
	}
	reply, err := a.Chat(context.Background(), "how do I study better?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply == "" {
		t.Fatalf("empty chat reply")
	}
}
