package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyforge/internal/domain"
	"studyforge/internal/util"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{}, &DocumentModel{}, &FlashcardModel{}, &QuizModel{},
		&SummaryModel{}, &UserStatsModel{}, &BadgeModel{}, &UserAchievementModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveDocument stores or updates a document.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "storage_key", "byte_size", "status", "error_message", "updated_at"}),
	}).Create(&model).Error
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByOwner returns the owner's documents, newest first.
func (s *GormStore) ListDocumentsByOwner(ownerID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// SetDocumentStatus updates document status/error. The WHERE clause restricts
// the update to legal source states so a terminal document is never rewritten,
// even under concurrent workers.
func (s *GormStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	froms := transitionSources(status)
	if len(froms) == 0 {
		return ErrInvalidTransition
	}
	res := s.db.Model(&DocumentModel{}).
		Where("id = ? AND status IN ?", id, froms).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&DocumentModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrInvalidTransition
		}
	}
	return nil
}

func transitionSources(to domain.DocumentStatus) []string {
	switch to {
	case domain.StatusProcessing:
		return []string{string(domain.StatusPending)}
	case domain.StatusCompleted:
		return []string{string(domain.StatusProcessing)}
	case domain.StatusFailed:
		return []string{string(domain.StatusPending), string(domain.StatusProcessing)}
	default:
		return nil
	}
}

// SaveFlashcards stores cards in one batch insert.
func (s *GormStore) SaveFlashcards(cards []domain.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	models := make([]FlashcardModel, 0, len(cards))
	for _, c := range cards {
		models = append(models, FlashcardModel{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Front:      c.Front,
			Back:       c.Back,
		})
	}
	return s.db.Create(&models).Error
}

// ListFlashcardsByDocument returns the document's cards.
func (s *GormStore) ListFlashcardsByDocument(documentID string) ([]domain.Flashcard, error) {
	var models []FlashcardModel
	if err := s.db.Where("document_id = ?", documentID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Flashcard, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Flashcard{ID: m.ID, DocumentID: m.DocumentID, Front: m.Front, Back: m.Back})
	}
	return res, nil
}

// SaveQuiz stores a quiz with its questions as a JSONB column.
func (s *GormStore) SaveQuiz(q domain.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	model := QuizModel{
		ID:         q.ID,
		DocumentID: q.DocumentID,
		Kind:       string(q.Kind),
		Difficulty: string(q.Difficulty),
		Questions:  datatypes.JSON(questions),
	}
	return s.db.Create(&model).Error
}

// ListQuizzesByDocument returns the document's quizzes.
func (s *GormStore) ListQuizzesByDocument(documentID string) ([]domain.Quiz, error) {
	var models []QuizModel
	if err := s.db.Where("document_id = ?", documentID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		quiz := domain.Quiz{
			ID:         m.ID,
			DocumentID: m.DocumentID,
			Kind:       domain.QuizKind(m.Kind),
			Difficulty: domain.Difficulty(m.Difficulty),
		}
		if err := json.Unmarshal(m.Questions, &quiz.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions for quiz %s: %w", m.ID, err)
		}
		res = append(res, quiz)
	}
	return res, nil
}

// SaveSummary stores the document summary.
func (s *GormStore) SaveSummary(sum domain.Summary) error {
	concepts, err := json.Marshal(sum.KeyConcepts)
	if err != nil {
		return fmt.Errorf("marshal key concepts: %w", err)
	}
	terms, err := json.Marshal(sum.Terminology)
	if err != nil {
		return fmt.Errorf("marshal terminology: %w", err)
	}
	model := SummaryModel{
		ID:          sum.ID,
		DocumentID:  sum.DocumentID,
		KeyConcepts: datatypes.JSON(concepts),
		Terminology: datatypes.JSON(terms),
		Narrative:   sum.Narrative,
	}
	return s.db.Create(&model).Error
}

// GetSummaryByDocument retrieves the document summary.
func (s *GormStore) GetSummaryByDocument(documentID string) (domain.Summary, bool, error) {
	var model SummaryModel
	if err := s.db.First(&model, "document_id = ?", documentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Summary{}, false, nil
		}
		return domain.Summary{}, false, err
	}
	sum := domain.Summary{ID: model.ID, DocumentID: model.DocumentID, Narrative: model.Narrative}
	if err := json.Unmarshal(model.KeyConcepts, &sum.KeyConcepts); err != nil {
		return domain.Summary{}, false, fmt.Errorf("unmarshal key concepts: %w", err)
	}
	if err := json.Unmarshal(model.Terminology, &sum.Terminology); err != nil {
		return domain.Summary{}, false, fmt.Errorf("unmarshal terminology: %w", err)
	}
	return sum, true, nil
}

// GetUserStats returns the user's stats record if present.
func (s *GormStore) GetUserStats(userID string) (domain.UserStats, bool, error) {
	var model UserStatsModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UserStats{}, false, nil
		}
		return domain.UserStats{}, false, err
	}
	return statsFromModel(model), true, nil
}

// IncrementUserStat applies a single atomic UPDATE so concurrent increments
// for the same user serialize at the database row.
func (s *GormStore) IncrementUserStat(userID string, stat domain.StatName, amount int64) (domain.UserStats, error) {
	column, ok := statColumn(stat)
	if !ok {
		return domain.UserStats{}, fmt.Errorf("unknown stat %q", stat)
	}
	if err := s.ensureStatsRow(userID); err != nil {
		return domain.UserStats{}, err
	}
	if err := s.db.Model(&UserStatsModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			column:         gorm.Expr(column+" + ?", amount),
			"last_updated": time.Now().UTC(),
		}).Error; err != nil {
		return domain.UserStats{}, err
	}
	stats, _, err := s.GetUserStats(userID)
	return stats, err
}

// SetUserStat sets the named counter to an absolute value. The guard against
// decreasing a counter lives in the WHERE clause, so concurrent sets
// serialize at the database row just like increments do.
func (s *GormStore) SetUserStat(userID string, stat domain.StatName, value int64) (domain.UserStats, error) {
	column, ok := statColumn(stat)
	if !ok {
		return domain.UserStats{}, fmt.Errorf("unknown stat %q", stat)
	}
	if err := s.ensureStatsRow(userID); err != nil {
		return domain.UserStats{}, err
	}
	res := s.db.Model(&UserStatsModel{}).
		Where("user_id = ? AND "+column+" <= ?", userID, value).
		Updates(map[string]any{
			column:         value,
			"last_updated": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.UserStats{}, res.Error
	}
	if res.RowsAffected == 0 {
		// ensureStatsRow guarantees the row exists, so zero updated rows
		// means the stored counter is already above value.
		return domain.UserStats{}, ErrStatDecrease
	}
	stats, _, err := s.GetUserStats(userID)
	return stats, err
}

func (s *GormStore) ensureStatsRow(userID string) error {
	model := UserStatsModel{
		ID:          util.NewID(),
		UserID:      userID,
		LastUpdated: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&model).Error
}

func statColumn(stat domain.StatName) (string, bool) {
	switch stat {
	case domain.StatDocumentsUploaded:
		return "documents_uploaded", true
	case domain.StatFlashcardsCreated:
		return "flashcards_created", true
	case domain.StatFlashcardsReviewed:
		return "flashcards_reviewed", true
	case domain.StatQuizzesCompleted:
		return "quizzes_completed", true
	case domain.StatQuizQuestionsAnswered:
		return "quiz_questions_answered", true
	case domain.StatCorrectAnswers:
		return "correct_answers", true
	case domain.StatStudyMinutes:
		return "total_study_minutes", true
	default:
		return "", false
	}
}

// SeedBadges upserts the badge catalog.
func (s *GormStore) SeedBadges(badges []domain.Badge) error {
	if len(badges) == 0 {
		return nil
	}
	models := make([]BadgeModel, 0, len(badges))
	for i, b := range badges {
		models = append(models, BadgeModel{
			ID:            b.ID,
			Name:          b.Name,
			Description:   b.Description,
			Icon:          b.Icon,
			Category:      string(b.Category),
			RequiredCount: b.RequiredCount,
			Position:      i,
		})
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "category", "required_count", "position"}),
	}).Create(&models).Error
}

// ListBadges returns the catalog in seed order.
func (s *GormStore) ListBadges() ([]domain.Badge, error) {
	var models []BadgeModel
	if err := s.db.Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Badge, 0, len(models))
	for _, m := range models {
		res = append(res, badgeFromModel(m))
	}
	return res, nil
}

// ListBadgesByCategory filters the catalog by category.
func (s *GormStore) ListBadgesByCategory(category domain.BadgeCategory) ([]domain.Badge, error) {
	var models []BadgeModel
	if err := s.db.Where("category = ?", string(category)).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Badge, 0, len(models))
	for _, m := range models {
		res = append(res, badgeFromModel(m))
	}
	return res, nil
}

// GetBadge retrieves a badge by ID.
func (s *GormStore) GetBadge(id string) (domain.Badge, bool, error) {
	var model BadgeModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Badge{}, false, nil
		}
		return domain.Badge{}, false, err
	}
	return badgeFromModel(model), true, nil
}

// CreateAchievement inserts an achievement, relying on the composite unique
// index to make the award idempotent. Returns false when already earned.
func (s *GormStore) CreateAchievement(a domain.UserAchievement) (bool, error) {
	model := UserAchievementModel{
		ID:       a.ID,
		UserID:   a.UserID,
		BadgeID:  a.BadgeID,
		EarnedAt: a.EarnedAt,
	}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAchievementsByUser returns achievements in earn order.
func (s *GormStore) ListAchievementsByUser(userID string) ([]domain.UserAchievement, error) {
	var models []UserAchievementModel
	if err := s.db.Where("user_id = ?", userID).Order("earned_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserAchievement, 0, len(models))
	for _, m := range models {
		res = append(res, domain.UserAchievement{ID: m.ID, UserID: m.UserID, BadgeID: m.BadgeID, EarnedAt: m.EarnedAt})
	}
	return res, nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		DisplayName:  d.DisplayName,
		StorageKey:   d.StorageKey,
		ByteSize:     d.ByteSize,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		DisplayName:  m.DisplayName,
		StorageKey:   m.StorageKey,
		ByteSize:     m.ByteSize,
		Status:       domain.DocumentStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func statsFromModel(m UserStatsModel) domain.UserStats {
	return domain.UserStats{
		ID:                    m.ID,
		UserID:                m.UserID,
		DocumentsUploaded:     m.DocumentsUploaded,
		FlashcardsCreated:     m.FlashcardsCreated,
		FlashcardsReviewed:    m.FlashcardsReviewed,
		QuizzesCompleted:      m.QuizzesCompleted,
		QuizQuestionsAnswered: m.QuizQuestionsAnswered,
		CorrectAnswers:        m.CorrectAnswers,
		TotalStudyMinutes:     m.TotalStudyMinutes,
		LastUpdated:           m.LastUpdated,
	}
}

func badgeFromModel(m BadgeModel) domain.Badge {
	return domain.Badge{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Icon:          m.Icon,
		Category:      domain.BadgeCategory(m.Category),
		RequiredCount: m.RequiredCount,
	}
}
