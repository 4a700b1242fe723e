package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"studyforge/internal/ai"
	"studyforge/internal/app"
	"studyforge/internal/auth"
	"studyforge/internal/config"
	"studyforge/internal/pipeline"
	"studyforge/internal/queue"
	"studyforge/internal/server"
	"studyforge/internal/stats"
	"studyforge/internal/storage"
	"studyforge/internal/store"
	"studyforge/internal/studygen"
	"studyforge/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
		dataStore = gormStore
	} else {
		slog.Warn("no databaseURL configured, using in-memory store")
		dataStore = store.NewMemoryStore()
	}
	if err := dataStore.SeedBadges(stats.DefaultBadges()); err != nil {
		log.Fatalf("failed to seed badges: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	var llm ai.TextGenerator
	switch cfg.LLMProvider {
	case "gemini":
		gemini, err := ai.NewGeminiGenerator(cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			log.Fatalf("failed to init gemini generator: %v", err)
		}
		llm = gemini
	default:
		llm = ai.NewOpenAICompatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	}
	generator := studygen.NewGenerator(llm, cfg.PromptCharLimit)

	engine := stats.NewEngine(dataStore)

	stream := cfg.QueueStream
	if stream == "" {
		stream = "studyforge:documents"
	}
	jobQueue, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   stream,
		Group:    "studyforge-workers",
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}

	processor := pipeline.NewProcessor(dataStore, objects, generator, engine)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	jobQueue.Start(workerCtx, cfg.WorkerConcurrency, func(ctx context.Context, job queue.JobStatus) error {
		return processor.Process(ctx, job.DocumentID)
	})

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	sessions, err := auth.NewSessions(cfg.SessionSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:     dataStore,
		Objects:   objects,
		Queue:     jobQueue,
		Generator: generator,
		Chat:      llm,
		Sessions:  sessions,
		Stats:     engine,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		UploadRateLimitPerMinute: cfg.UploadRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
