// Package app is the core application service wiring storage, the job queue
// and the stats engine behind the HTTP layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"studyforge/internal/auth"
	"studyforge/internal/domain"
	"studyforge/internal/extract"
	"studyforge/internal/queue"
	"studyforge/internal/stats"
	"studyforge/internal/storage"
	"studyforge/internal/store"
	"studyforge/internal/util"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNoArtifacts        = errors.New("no artifacts for document")
	ErrDocumentNotReady   = errors.New("document not processed yet")
)

// JobEnqueuer submits document processing jobs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, documentID string) (queue.JobStatus, error)
}

// QuizGenerator is the on-demand slice of the study material generator.
type QuizGenerator interface {
	Quiz(ctx context.Context, documentID, text string, kind domain.QuizKind, difficulty domain.Difficulty) (domain.Quiz, error)
}

// ChatModel answers free-form questions.
type ChatModel interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds the collaborators App wires together.
type Config struct {
	Store     store.Store
	Objects   storage.ObjectStore
	Queue     JobEnqueuer
	Generator QuizGenerator
	Chat      ChatModel
	Sessions  *auth.Sessions
	Stats     *stats.Engine
}

// App implements the use cases exposed by the HTTP server.
type App struct {
	store    store.Store
	objects  storage.ObjectStore
	queue    JobEnqueuer
	gen      QuizGenerator
	chat     ChatModel
	sessions *auth.Sessions
	stats    *stats.Engine

	// extractText is swappable for tests.
	extractText func(path string) (string, error)
}

func New(cfg Config) (*App, error) {
	if cfg.Store == nil || cfg.Objects == nil || cfg.Queue == nil || cfg.Sessions == nil || cfg.Stats == nil {
		return nil, errors.New("app requires store, objects, queue, sessions and stats")
	}
	return &App{
		store:       cfg.Store,
		objects:     cfg.Objects,
		queue:       cfg.Queue,
		gen:         cfg.Generator,
		chat:        cfg.Chat,
		sessions:    cfg.Sessions,
		stats:       cfg.Stats,
		extractText: extract.Text,
	}, nil
}

// SignUp registers a new user and issues a session token.
func (a *App) SignUp(email, name, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", errors.New("email and password required")
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, err := a.sessions.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// UploadDocument stores the PDF, creates a pending document and enqueues
// processing. Any badges earned by the upload counter are returned.
func (a *App) UploadDocument(ctx context.Context, user domain.User, filename string, r io.Reader, size int64) (domain.Document, []domain.EarnedBadge, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Document{}, nil, errors.New("filename required")
	}
	id := util.NewID()
	doc := domain.Document{
		ID:          id,
		OwnerID:     user.ID,
		DisplayName: filename,
		StorageKey:  fmt.Sprintf("documents/%s/%s", id, sanitizeKey(filename)),
		ByteSize:    size,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := a.objects.Put(ctx, doc.StorageKey, r, size, "application/pdf"); err != nil {
		return domain.Document{}, nil, fmt.Errorf("store file: %w", err)
	}
	if err := a.store.SaveDocument(doc); err != nil {
		return domain.Document{}, nil, fmt.Errorf("save document: %w", err)
	}
	if _, err := a.queue.Enqueue(ctx, doc.ID); err != nil {
		return domain.Document{}, nil, fmt.Errorf("enqueue processing: %w", err)
	}
	_, earned, err := a.stats.Increment(user.ID, domain.StatDocumentsUploaded, 1)
	if err != nil {
		slog.Error("documentsUploaded increment failed", "userId", user.ID, "error", err)
	}
	return doc, earned, nil
}

// ListDocuments returns the user's documents, newest first.
func (a *App) ListDocuments(user domain.User) ([]domain.Document, error) {
	return a.store.ListDocumentsByOwner(user.ID)
}

// GetDocument retrieves one document after an ownership check.
func (a *App) GetDocument(user domain.User, id string) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	if doc.OwnerID != user.ID {
		return domain.Document{}, ErrForbidden
	}
	return doc, nil
}

// DocumentFlashcards returns a document's flashcards; ErrNoArtifacts when
// none exist yet.
func (a *App) DocumentFlashcards(user domain.User, documentID string) ([]domain.Flashcard, error) {
	if _, err := a.GetDocument(user, documentID); err != nil {
		return nil, err
	}
	cards, err := a.store.ListFlashcardsByDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	if len(cards) == 0 {
		return nil, ErrNoArtifacts
	}
	return cards, nil
}

// DocumentQuizzes returns a document's quizzes; ErrNoArtifacts when none
// exist yet.
func (a *App) DocumentQuizzes(user domain.User, documentID string) ([]domain.Quiz, error) {
	if _, err := a.GetDocument(user, documentID); err != nil {
		return nil, err
	}
	quizzes, err := a.store.ListQuizzesByDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if len(quizzes) == 0 {
		return nil, ErrNoArtifacts
	}
	return quizzes, nil
}

// DocumentSummary returns a document's summary; ErrNoArtifacts when none
// exists yet.
func (a *App) DocumentSummary(user domain.User, documentID string) (domain.Summary, error) {
	if _, err := a.GetDocument(user, documentID); err != nil {
		return domain.Summary{}, err
	}
	summary, ok, err := a.store.GetSummaryByDocument(documentID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	if !ok {
		return domain.Summary{}, ErrNoArtifacts
	}
	return summary, nil
}

// GenerateQuiz builds a fresh quiz for a completed document with the
// requested kind and difficulty, persists it and returns it.
func (a *App) GenerateQuiz(ctx context.Context, user domain.User, documentID string, kind domain.QuizKind, difficulty domain.Difficulty) (domain.Quiz, error) {
	doc, err := a.GetDocument(user, documentID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if doc.Status != domain.StatusCompleted {
		return domain.Quiz{}, ErrDocumentNotReady
	}
	if a.gen == nil {
		return domain.Quiz{}, errors.New("quiz generation not configured")
	}
	text, err := a.fetchAndExtract(ctx, doc)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("extract document text: %w", err)
	}
	quiz, err := a.gen.Quiz(ctx, doc.ID, text, kind, difficulty)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := a.store.SaveQuiz(quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	return quiz, nil
}

// Chat forwards a message to the LLM with a study-assistant system prompt.
func (a *App) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message required")
	}
	if a.chat == nil {
		return "", errors.New("chat not configured")
	}
	const systemPrompt = "You are a friendly study assistant. Answer concisely and suggest concrete study techniques when relevant."
	return a.chat.GenerateText(ctx, systemPrompt, message)
}

// UpdateStat applies one stat mutation. increment selects add-to versus
// overwrite semantics.
func (a *App) UpdateStat(user domain.User, stat domain.StatName, value int64, increment bool) (domain.UserStats, []domain.EarnedBadge, error) {
	if increment {
		return a.stats.Increment(user.ID, stat, value)
	}
	return a.stats.Set(user.ID, stat, value)
}

// AddStudyTime adds minutes to the study time counter.
func (a *App) AddStudyTime(user domain.User, minutes int64) (domain.UserStats, []domain.EarnedBadge, error) {
	if minutes <= 0 {
		return domain.UserStats{}, nil, errors.New("minutes must be positive")
	}
	return a.stats.Increment(user.ID, domain.StatStudyMinutes, minutes)
}

// TrackFlashcardReview records one flashcard review.
func (a *App) TrackFlashcardReview(user domain.User) (domain.UserStats, []domain.EarnedBadge, error) {
	return a.stats.Increment(user.ID, domain.StatFlashcardsReviewed, 1)
}

// TrackQuizCompletion records a finished quiz attempt.
func (a *App) TrackQuizCompletion(user domain.User, answered, correct int64) (domain.UserStats, []domain.EarnedBadge, error) {
	if answered < 0 || correct < 0 || correct > answered {
		return domain.UserStats{}, nil, errors.New("invalid answer counts")
	}
	var earned []domain.EarnedBadge
	userStats, newBadges, err := a.stats.Increment(user.ID, domain.StatQuizzesCompleted, 1)
	if err != nil {
		return domain.UserStats{}, nil, err
	}
	earned = append(earned, newBadges...)
	if answered > 0 {
		userStats, newBadges, err = a.stats.Increment(user.ID, domain.StatQuizQuestionsAnswered, answered)
		if err != nil {
			return domain.UserStats{}, nil, err
		}
		earned = append(earned, newBadges...)
	}
	if correct > 0 {
		userStats, newBadges, err = a.stats.Increment(user.ID, domain.StatCorrectAnswers, correct)
		if err != nil {
			return domain.UserStats{}, nil, err
		}
		earned = append(earned, newBadges...)
	}
	return userStats, earned, nil
}

// UserStats returns the user's counters, zero-valued when nothing has been
// tracked yet.
func (a *App) UserStats(user domain.User) (domain.UserStats, error) {
	userStats, ok, err := a.store.GetUserStats(user.ID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("get stats: %w", err)
	}
	if !ok {
		return domain.UserStats{UserID: user.ID}, nil
	}
	return userStats, nil
}

// Badges lists the badge catalogue, optionally narrowed to a category.
func (a *App) Badges(category string) ([]domain.Badge, error) {
	if category == "" {
		return a.store.ListBadges()
	}
	return a.store.ListBadgesByCategory(domain.BadgeCategory(category))
}

// Achievements returns the user's earned badges with badge details.
func (a *App) Achievements(user domain.User) ([]domain.EarnedBadge, error) {
	achievements, err := a.store.ListAchievementsByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	earned := make([]domain.EarnedBadge, 0, len(achievements))
	for _, achievement := range achievements {
		badge, ok, err := a.store.GetBadge(achievement.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("get badge %s: %w", achievement.BadgeID, err)
		}
		if !ok {
			continue
		}
		earned = append(earned, domain.EarnedBadge{Achievement: achievement, Badge: badge})
	}
	return earned, nil
}

// Dashboard aggregates the data behind the home screen.
type Dashboard struct {
	Stats           domain.UserStats     `json:"stats"`
	RecentDocuments []domain.Document    `json:"recentDocuments"`
	Achievements    []domain.EarnedBadge `json:"achievements"`
	BadgesEarned    int                  `json:"badgesEarned"`
	BadgesTotal     int                  `json:"badgesTotal"`
}

// Dashboard fans out the independent reads concurrently.
func (a *App) Dashboard(user domain.User) (Dashboard, error) {
	var (
		dash   Dashboard
		badges []domain.Badge
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		userStats, err := a.UserStats(user)
		if err != nil {
			return err
		}
		dash.Stats = userStats
		return nil
	})
	g.Go(func() error {
		docs, err := a.store.ListDocumentsByOwner(user.ID)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if len(docs) > 5 {
			docs = docs[:5]
		}
		dash.RecentDocuments = docs
		return nil
	})
	g.Go(func() error {
		earned, err := a.Achievements(user)
		if err != nil {
			return err
		}
		dash.Achievements = earned
		return nil
	})
	g.Go(func() error {
		all, err := a.store.ListBadges()
		if err != nil {
			return fmt.Errorf("list badges: %w", err)
		}
		badges = all
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	dash.BadgesEarned = len(dash.Achievements)
	dash.BadgesTotal = len(badges)
	if dash.RecentDocuments == nil {
		dash.RecentDocuments = []domain.Document{}
	}
	if dash.Achievements == nil {
		dash.Achievements = []domain.EarnedBadge{}
	}
	return dash, nil
}

func (a *App) fetchAndExtract(ctx context.Context, doc domain.Document) (string, error) {
	obj, err := a.objects.Get(ctx, doc.StorageKey)
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
	return a.extractText(tmp.Name())
}

func sanitizeKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
