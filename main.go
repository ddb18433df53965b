package main

import (
	"context"
	"errors"
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

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/config"
	"github.com/SAP-F-2025/leave-assessment-service/internal/evaluator"
	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/handlers"
	"github.com/SAP-F-2025/leave-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
	"github.com/SAP-F-2025/leave-assessment-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	metrics.Init()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; without it every read goes to postgres
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, running without cache", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	userRepo := casdoor.NewUserCasdoor(casdoor.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Cert,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	}, cacheManager)

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		CacheManager:   cacheManager,
		UserRepository: userRepo,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	bus, err := events.NewBus(events.BusConfig{KafkaBrokers: cfg.KafkaBrokers}, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	publisher := events.NewWatermillPublisher(bus.Publisher, slogLogger)

	notificationRouter, err := events.NewNotificationRouter(bus, events.NewEventNotificationSender(publisher), userRepo, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize notification router: %v", err)
	}
	routerCtx, stopRouter := context.WithCancel(context.Background())
	go func() {
		if err := notificationRouter.Run(routerCtx); err != nil {
			logger.Error("Notification router stopped", "error", err)
		}
	}()

	source, closeSource := newQuestionSource(cfg, slogLogger)
	defer closeSource()

	validator := validator.New()

	serviceManager := services.NewServiceManager(repoManager.GetRepository(), slogLogger, validator, services.ServiceManagerConfig{
		Source:            source,
		Evaluator:         evaluator.NewEvaluator(newRunner(cfg), cfg.Evaluator.QuestionTimeout, slogLogger),
		Publisher:         publisher,
		SubmissionTimeout: cfg.Evaluator.SubmissionTimeout,
		Leave: services.LeaveOptions{
			PassingThreshold:  cfg.Leave.PassingThreshold,
			MCQCount:          cfg.Leave.MCQCount,
			CodingCount:       cfg.Leave.CodingCount,
			DefaultTopic:      cfg.Leave.DefaultTopic,
			DefaultDifficulty: models.DifficultyLevel(cfg.Leave.DefaultDifficulty),
		},
		RepositoryManager: repoManager,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger, cfg.Casdoor, userRepo, cfg.IsDevelopment())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Error("Server forced to shutdown", "error", err)
	}

	stopRouter()
	if err := notificationRouter.Close(); err != nil {
		logger.Error("Failed to close notification router", "error", err)
	}

	// Closes the publisher, database and Redis
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", "error", err)
	}

	logger.Info("Server exited")
}

// newQuestionSource wires Gemini behind the adapter. Without an API key the
// adapter serves the fallback set only.
func newQuestionSource(cfg *config.Config, logger *slog.Logger) (*questionsource.Adapter, func()) {
	var generator questionsource.Generator
	closeFn := func() {}

	gemini, err := questionsource.NewGeminiGenerator(context.Background(), cfg.QuestionSource.GeminiAPIKey, cfg.QuestionSource.GeminiModel)
	switch {
	case err != nil:
		logger.Warn("Gemini unavailable, using fallback questions only", "error", err)
	case gemini == nil:
		logger.Warn("GEMINI_API_KEY not set, using fallback questions only")
	default:
		generator = gemini
		closeFn = func() { _ = gemini.Close() }
	}

	adapter := questionsource.NewAdapter(generator, questionsource.Config{
		Timeout:        cfg.QuestionSource.Timeout,
		RequestsPerSec: cfg.QuestionSource.RequestsPerSec,
	}, logger)
	return adapter, closeFn
}

func newRunner(cfg *config.Config) evaluator.Runner {
	if cfg.Evaluator.Backend == "judge0" {
		return evaluator.NewJudge0Runner(evaluator.Judge0Config{
			URL:            cfg.Evaluator.Judge0URL,
			APIKey:         cfg.Evaluator.Judge0APIKey,
			CaseTimeout:    cfg.Evaluator.CaseTimeout,
			MaxOutputBytes: cfg.Evaluator.MaxOutputBytes,
		})
	}
	return evaluator.NewProcessRunner(evaluator.ProcessRunnerConfig{
		Command:        cfg.Evaluator.Command,
		CaseTimeout:    cfg.Evaluator.CaseTimeout,
		MaxOutputBytes: cfg.Evaluator.MaxOutputBytes,
	})
}
