// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"studyforge/internal/app"
	"studyforge/internal/domain"
	"studyforge/internal/ratelimit"
	"studyforge/internal/studygen"
	"studyforge/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	UploadRateLimitPerMinute int
	MaxUploadBytes           int64
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	uploadLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	uploadLimit := cfg.UploadRateLimitPerMinute
	if uploadLimit <= 0 {
		uploadLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "studyforge:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	uploadLimiter, err := newLimiter("upload", uploadLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		uploadLimiter:  uploadLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// documents
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))
	s.mux.Handle("/api/documents/upload", s.authenticated(s.handleUpload))
	s.mux.Handle("/api/documents/", s.authenticated(s.handleDocumentByID))

	// stats & achievements
	s.mux.Handle("/api/stats", s.authenticated(s.handleStats))
	s.mux.Handle("/api/stats/update", s.authenticated(s.handleStatsUpdate))
	s.mux.Handle("/api/stats/study-time", s.authenticated(s.handleStudyTime))
	s.mux.Handle("/api/flashcards/track-review", s.authenticated(s.handleTrackReview))
	s.mux.Handle("/api/quizzes/track-completion", s.authenticated(s.handleTrackCompletion))
	s.mux.Handle("/api/dashboard", s.authenticated(s.handleDashboard))
	s.mux.Handle("/api/badges", s.authenticated(s.handleBadges))
	s.mux.Handle("/api/badges/category/", s.authenticated(s.handleBadgesByCategory))
	s.mux.Handle("/api/achievements", s.authenticated(s.handleAchievements))

	// chat
	s.mux.Handle("/api/chat", s.authenticated(s.handleChat))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "api.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Email, req.Name, req.Password)
	if err != nil {
		s.audit(r, "api.signup", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Sessions are stateless tokens; logout exists so clients have a uniform
// endpoint to call while discarding the token locally.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.audit(r, "api.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// document handlers
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	docs, err := s.app.ListDocuments(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": docs,
		"count": len(docs),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many uploads") {
		s.audit(r, "api.document.upload", "rate_limited", "user_id", user.ID)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if !isPDFUpload(header.Filename, header.Header.Get("Content-Type")) {
		s.audit(r, "api.document.upload", "fail", "user_id", user.ID, "reason", "unsupported_type")
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}
	doc, earned, err := s.app.UploadDocument(r.Context(), user, header.Filename, file, header.Size)
	if err != nil {
		s.audit(r, "api.document.upload", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.document.upload", "success", "user_id", user.ID, "document_id", doc.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"document":        doc,
		"newAchievements": earnedOrEmpty(earned),
	})
}

// /api/documents/{id} or /api/documents/{id}/{flashcards|quizzes|summary}
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		s.handleDocumentArtifacts(w, r, user, id, parts[1])
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	doc, err := s.app.GetDocument(user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentArtifacts(w http.ResponseWriter, r *http.Request, user domain.User, id, artifact string) {
	switch artifact {
	case "flashcards":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		cards, err := s.app.DocumentFlashcards(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": cards, "count": len(cards)})
	case "quizzes":
		switch r.Method {
		case http.MethodGet:
			quizzes, err := s.app.DocumentQuizzes(user, id)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": quizzes, "count": len(quizzes)})
		case http.MethodPost:
			s.handleGenerateQuiz(w, r, user, id)
		default:
			methodNotAllowed(w)
		}
	case "summary":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		summary, err := s.app.DocumentSummary(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	var req generateQuizRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, ok := parseQuizKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "kind must be multiple-choice or true-false")
		return
	}
	difficulty, ok := parseDifficulty(req.Difficulty)
	if !ok {
		writeError(w, http.StatusBadRequest, "difficulty must be easy, medium or hard")
		return
	}
	quiz, err := s.app.GenerateQuiz(r.Context(), user, id, kind, difficulty)
	if err != nil {
		s.audit(r, "api.quiz.generate", "fail", "user_id", user.ID, "document_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.quiz.generate", "success", "user_id", user.ID, "document_id", id)
	writeJSON(w, http.StatusCreated, quiz)
}

// stats handlers
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userStats, err := s.app.UserStats(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userStats)
}

func (s *Server) handleStatsUpdate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req statsUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stat, ok := domain.ParseStatName(req.StatName)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown statName")
		return
	}
	value := int64(1)
	if req.Value != nil {
		value = *req.Value
	}
	if value < 0 {
		writeError(w, http.StatusBadRequest, "value must be non-negative")
		return
	}
	userStats, earned, err := s.app.UpdateStat(user, stat, value, req.Increment)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: userStats, NewAchievements: earnedOrEmpty(earned)})
}

func (s *Server) handleStudyTime(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req studyTimeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	userStats, earned, err := s.app.AddStudyTime(user, req.Minutes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: userStats, NewAchievements: earnedOrEmpty(earned)})
}

func (s *Server) handleTrackReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	userStats, earned, err := s.app.TrackFlashcardReview(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: userStats, NewAchievements: earnedOrEmpty(earned)})
}

func (s *Server) handleTrackCompletion(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req trackCompletionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userStats, earned, err := s.app.TrackQuizCompletion(user, req.QuestionsAnswered, req.CorrectAnswers)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: userStats, NewAchievements: earnedOrEmpty(earned)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dash, err := s.app.Dashboard(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	badges, err := s.app.Badges("")
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": badges, "count": len(badges)})
}

func (s *Server) handleBadgesByCategory(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	category := strings.TrimPrefix(r.URL.Path, "/api/badges/category/")
	if category == "" || strings.Contains(category, "/") {
		http.NotFound(w, r)
		return
	}
	if _, ok := domain.BadgeCategory(category).CounterFor(); !ok {
		writeError(w, http.StatusBadRequest, "unknown badge category")
		return
	}
	badges, err := s.app.Badges(category)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": badges, "count": len(badges)})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	earned, err := s.app.Achievements(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": earned, "count": len(earned)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	reply, err := s.app.Chat(r.Context(), req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// request/response types

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type generateQuizRequest struct {
	Kind       string `json:"kind"`
	Difficulty string `json:"difficulty"`
}

type statsUpdateRequest struct {
	StatName string `json:"statName"`
	// Value is a pointer so an omitted field can default to 1.
	Value     *int64 `json:"value"`
	Increment bool   `json:"increment"`
}

type studyTimeRequest struct {
	Minutes int64 `json:"minutes"`
}

type trackCompletionRequest struct {
	QuestionsAnswered int64 `json:"questionsAnswered"`
	CorrectAnswers    int64 `json:"correctAnswers"`
}

type statsResponse struct {
	Stats           domain.UserStats     `json:"stats"`
	NewAchievements []domain.EarnedBadge `json:"newAchievements"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func parseQuizKind(kind string) (domain.QuizKind, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", string(domain.QuizMultipleChoice):
		return domain.QuizMultipleChoice, true
	case string(domain.QuizTrueFalse):
		return domain.QuizTrueFalse, true
	default:
		return "", false
	}
}

func parseDifficulty(difficulty string) (domain.Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(difficulty)) {
	case "", string(domain.DifficultyMedium):
		return domain.DifficultyMedium, true
	case string(domain.DifficultyEasy):
		return domain.DifficultyEasy, true
	case string(domain.DifficultyHard):
		return domain.DifficultyHard, true
	default:
		return "", false
	}
}

func isPDFUpload(filename, contentType string) bool {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return false
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	return strings.Contains(contentType, "pdf")
}

func earnedOrEmpty(earned []domain.EarnedBadge) []domain.EarnedBadge {
	if earned == nil {
		return []domain.EarnedBadge{}
	}
	return earned
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	var genErr *studygen.GenerationError
	switch {
	case errors.Is(err, app.ErrNotFound), errors.Is(err, app.ErrNoArtifacts):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrDocumentNotReady):
		writeError(w, http.StatusConflict, "document not processed yet")
	case errors.As(err, &genErr):
		writeError(w, http.StatusBadGateway, "generation failed")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 25 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
