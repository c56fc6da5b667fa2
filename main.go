package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quizforge/quiz-service/internal/ai"
	"github.com/quizforge/quiz-service/internal/config"
	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/grading"
	"github.com/quizforge/quiz-service/internal/handlers"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/repositories/casdoor"
	"github.com/quizforge/quiz-service/internal/repositories/postgres"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
	"github.com/quizforge/quiz-service/pkg"
)

// timeoutSweepInterval is how often overdue attempts are force-submitted
// and overdue quizzes expired.
const timeoutSweepInterval = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis, running without cache: %v", err)
		}
	}

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})

	v := validator.New()

	// Grading pipeline: AI grading when OpenAI is configured, similarity
	// fallback otherwise.
	gradingCfg := grading.Config{
		MaxRetries:                  cfg.Grading.MaxRetries,
		Timeout:                     cfg.GradingTimeout(),
		FallbackSimilarityThreshold: cfg.Grading.FallbackSimilarityThreshold,
		PartialCreditThreshold:      cfg.Grading.PartialCreditThreshold,
		MaxResponseTokens:           cfg.Grading.MaxResponseTokens,
		AttemptDeadline:             cfg.AttemptDeadline(),
	}.WithDefaults()

	metrics := grading.NewMemoryRecorder()
	var aiGrader grading.AIGrader
	if cfg.OpenAI.Enabled() {
		aiGrader = ai.NewClient(cfg.OpenAI, gradingCfg, slogLogger)
		slogLogger.Info("AI grading enabled", "model", cfg.OpenAI.Model)
	} else {
		slogLogger.Info("AI grading disabled, descriptive answers graded by similarity")
	}
	grader := grading.NewAttemptGrader(gradingCfg, aiGrader, metrics, slogLogger)

	// Event transport: Kafka when brokers are configured, otherwise the
	// in-process channel bus (which is also the worker's subscriber).
	var publisher events.EventPublisher
	var subscriber events.EventSubscriber
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err := events.NewKafkaEventPublisher(cfg.Kafka.Brokers, slogLogger)
		if err != nil {
			log.Fatalf("Failed to connect Kafka publisher: %v", err)
		}
		kafkaSubscriber, err := events.NewKafkaEventSubscriber(cfg.Kafka.Brokers, "quiz-service-email-worker", slogLogger)
		if err != nil {
			log.Fatalf("Failed to connect Kafka subscriber: %v", err)
		}
		publisher = kafkaPublisher
		subscriber = kafkaSubscriber
	} else {
		bus := events.NewChannelBus(slogLogger)
		publisher = bus
		subscriber = bus
	}

	serviceManager := services.NewServiceManager(services.ManagerDeps{
		Repo:      repo,
		DB:        db,
		Logger:    slogLogger,
		Validator: v,
		Config:    cfg,
		Grader:    grader,
		Metrics:   metrics,
		Publisher: publisher,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	handlerManager := handlers.NewHandlerManager(serviceManager, v, logger, cfg.Casdoor, repo.User())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Background work: email delivery plus the timeout/expiry sweep.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	emailWorker := services.NewEmailWorker(repo, serviceManager.Email(), subscriber, slogLogger)
	go func() {
		if err := emailWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			slogLogger.Error("Email worker stopped", "error", err)
		}
	}()

	go runTimeoutSweep(workerCtx, serviceManager, repo, slogLogger)

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	stopWorkers()

	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	if err := repo.Close(); err != nil {
		log.Printf("Failed to close repositories: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}

// runTimeoutSweep periodically force-submits attempts whose deadline
// passed and expires quizzes whose due date passed. Both are also
// enforced lazily on access; the sweep keeps rows from lingering when
// nobody looks at them.
func runTimeoutSweep(ctx context.Context, sm services.ServiceManager, repo repositories.Repository, logger *slog.Logger) {
	ticker := time.NewTicker(timeoutSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := sm.Attempt().HandleTimeouts(ctx, 100)
			if err != nil {
				logger.Error("Timeout sweep failed", "error", err)
			} else if closed > 0 {
				logger.Info("Force-submitted overdue attempts", "count", closed)
			}

			expired, err := repo.Quiz().ExpireOverdue(ctx, nil, time.Now())
			if err != nil {
				logger.Error("Quiz expiry sweep failed", "error", err)
			} else if expired > 0 {
				logger.Info("Expired overdue quizzes", "count", expired)
			}
		}
	}
}
