package store

import (
	"sync"
	"time"

	"studyforge/internal/domain"
	"studyforge/internal/util"
)

// MemoryStore keeps all records in-process. Useful for tests and single-node
// deployments without Postgres; the store mutex serializes stat increments.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	email      map[string]string // email -> user ID
	documents  map[string]domain.Document
	docOrder   []string
	flashcards map[string][]domain.Flashcard // documentID -> cards
	quizzes    map[string][]domain.Quiz      // documentID -> quizzes
	summaries  map[string]domain.Summary     // documentID -> summary
	stats      map[string]domain.UserStats   // userID -> stats
	badges     map[string]domain.Badge
	badgeOrder []string
	earned     map[string][]domain.UserAchievement // userID -> achievements
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		email:      make(map[string]string),
		documents:  make(map[string]domain.Document),
		flashcards: make(map[string][]domain.Flashcard),
		quizzes:    make(map[string][]domain.Quiz),
		summaries:  make(map[string]domain.Summary),
		stats:      make(map[string]domain.UserStats),
		badges:     make(map[string]domain.Badge),
		earned:     make(map[string][]domain.UserAchievement),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveDocument stores or replaces a document and tracks insertion order.
func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.documents[d.ID]; !exists {
		m.docOrder = append(m.docOrder, d.ID)
	}
	m.documents[d.ID] = d
	return nil
}

// GetDocument retrieves a document by ID.
func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

// ListDocumentsByOwner returns the owner's documents, newest first.
func (m *MemoryStore) ListDocumentsByOwner(ownerID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.docOrder))
	for i := len(m.docOrder) - 1; i >= 0; i-- {
		if d, ok := m.documents[m.docOrder[i]]; ok && d.OwnerID == ownerID {
			res = append(res, d)
		}
	}
	return res, nil
}

// SetDocumentStatus updates status and optional error message, enforcing the
// one-directional state machine.
func (m *MemoryStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil
	}
	if !allowedTransition(doc.Status, status) {
		return ErrInvalidTransition
	}
	doc.Status = status
	doc.ErrorMessage = errMsg
	doc.UpdatedAt = time.Now().UTC()
	m.documents[id] = doc
	return nil
}

// SaveFlashcards appends cards in bulk.
func (m *MemoryStore) SaveFlashcards(cards []domain.Flashcard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		m.flashcards[c.DocumentID] = append(m.flashcards[c.DocumentID], c)
	}
	return nil
}

// ListFlashcardsByDocument returns cards in insertion order.
func (m *MemoryStore) ListFlashcardsByDocument(documentID string) ([]domain.Flashcard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cards := m.flashcards[documentID]
	res := make([]domain.Flashcard, len(cards))
	copy(res, cards)
	return res, nil
}

// SaveQuiz appends a quiz.
func (m *MemoryStore) SaveQuiz(q domain.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.DocumentID] = append(m.quizzes[q.DocumentID], q)
	return nil
}

// ListQuizzesByDocument returns quizzes in insertion order.
func (m *MemoryStore) ListQuizzesByDocument(documentID string) ([]domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	quizzes := m.quizzes[documentID]
	res := make([]domain.Quiz, len(quizzes))
	copy(res, quizzes)
	return res, nil
}

// SaveSummary stores the document summary.
func (m *MemoryStore) SaveSummary(s domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.DocumentID] = s
	return nil
}

// GetSummaryByDocument retrieves the document summary.
func (m *MemoryStore) GetSummaryByDocument(documentID string) (domain.Summary, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[documentID]
	return s, ok, nil
}

// GetUserStats returns the user's stats record if present.
func (m *MemoryStore) GetUserStats(userID string) (domain.UserStats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[userID]
	return s, ok, nil
}

// IncrementUserStat adds amount to the named counter, creating the record
// with zeroed counters on first use. The whole read-modify-write runs under
// the store lock, which serializes concurrent increments for the same user.
func (m *MemoryStore) IncrementUserStat(userID string, stat domain.StatName, amount int64) (domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateStatsLocked(userID)
	applyStat(&s, stat, s.Counter(stat)+amount)
	s.LastUpdated = time.Now().UTC()
	m.stats[userID] = s
	return s, nil
}

// SetUserStat sets the named counter to an absolute value. The comparison
// against the stored value runs under the store lock, so concurrent sets
// cannot move a counter backwards.
func (m *MemoryStore) SetUserStat(userID string, stat domain.StatName, value int64) (domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateStatsLocked(userID)
	if value < s.Counter(stat) {
		return domain.UserStats{}, ErrStatDecrease
	}
	applyStat(&s, stat, value)
	s.LastUpdated = time.Now().UTC()
	m.stats[userID] = s
	return s, nil
}

func (m *MemoryStore) getOrCreateStatsLocked(userID string) domain.UserStats {
	if s, ok := m.stats[userID]; ok {
		return s
	}
	return domain.UserStats{
		ID:          util.NewID(),
		UserID:      userID,
		LastUpdated: time.Now().UTC(),
	}
}

func applyStat(s *domain.UserStats, stat domain.StatName, value int64) {
	switch stat {
	case domain.StatDocumentsUploaded:
		s.DocumentsUploaded = value
	case domain.StatFlashcardsCreated:
		s.FlashcardsCreated = value
	case domain.StatFlashcardsReviewed:
		s.FlashcardsReviewed = value
	case domain.StatQuizzesCompleted:
		s.QuizzesCompleted = value
	case domain.StatQuizQuestionsAnswered:
		s.QuizQuestionsAnswered = value
	case domain.StatCorrectAnswers:
		s.CorrectAnswers = value
	case domain.StatStudyMinutes:
		s.TotalStudyMinutes = value
	}
}

// SeedBadges loads the badge catalog. Existing entries are replaced so a
// restart with an updated catalog takes effect.
func (m *MemoryStore) SeedBadges(badges []domain.Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range badges {
		if _, exists := m.badges[b.ID]; !exists {
			m.badgeOrder = append(m.badgeOrder, b.ID)
		}
		m.badges[b.ID] = b
	}
	return nil
}

// ListBadges returns the full catalog in seed order.
func (m *MemoryStore) ListBadges() ([]domain.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Badge, 0, len(m.badgeOrder))
	for _, id := range m.badgeOrder {
		if b, ok := m.badges[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

// ListBadgesByCategory filters the catalog by category.
func (m *MemoryStore) ListBadgesByCategory(category domain.BadgeCategory) ([]domain.Badge, error) {
	all, _ := m.ListBadges()
	res := make([]domain.Badge, 0, len(all))
	for _, b := range all {
		if b.Category == category {
			res = append(res, b)
		}
	}
	return res, nil
}

// GetBadge retrieves a badge by ID.
func (m *MemoryStore) GetBadge(id string) (domain.Badge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.badges[id]
	return b, ok, nil
}

// CreateAchievement records an earned badge. Returns false without writing
// when the (userID, badgeID) pair already exists.
func (m *MemoryStore) CreateAchievement(a domain.UserAchievement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.earned[a.UserID] {
		if existing.BadgeID == a.BadgeID {
			return false, nil
		}
	}
	m.earned[a.UserID] = append(m.earned[a.UserID], a)
	return true, nil
}

// ListAchievementsByUser returns achievements in earn order.
func (m *MemoryStore) ListAchievementsByUser(userID string) ([]domain.UserAchievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	earned := m.earned[userID]
	res := make([]domain.UserAchievement, len(earned))
	copy(res, earned)
	return res, nil
}
