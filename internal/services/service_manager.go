package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

// ServiceManagerConfig holds the collaborators shared by the services
type ServiceManagerConfig struct {
	Source    QuestionSource
	Evaluator CodeEvaluator
	Publisher events.EventPublisher

	SubmissionTimeout time.Duration
	Leave             LeaveOptions

	// Optional; shut down together with the services
	RepositoryManager repositories.RepositoryManager
}

func (c *ServiceManagerConfig) Validate() error {
	var problems []string
	if c.Source == nil {
		problems = append(problems, "question source is required")
	}
	if c.Evaluator == nil {
		problems = append(problems, "code evaluator is required")
	}
	if c.SubmissionTimeout < 0 {
		problems = append(problems, "submission timeout cannot be negative")
	}
	if c.Leave.PassingThreshold < 0 || c.Leave.PassingThreshold > 100 {
		problems = append(problems, "passing threshold must be between 0 and 100")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %v", problems)
	}
	return nil
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	rounds              RoundCompletionChecker
	testSessionService  TestSessionService
	leaveService        LeaveService
	questionBankService QuestionBankService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// Initialize wires the services. The round resolver is built first since
// both the session and leave services settle leave requests through it.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.config.Validate(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.rounds = NewRoundCompletionChecker(sm.repo, sm.config.Publisher, sm.logger)

	sm.questionBankService = NewQuestionBankService(sm.repo, sm.logger, sm.validator, sm.config.Source)
	sm.logger.Info("QuestionBank service initialized")

	sm.testSessionService = NewTestSessionService(sm.repo, sm.logger, sm.validator, TestSessionDeps{
		Source:            sm.config.Source,
		Bank:              sm.questionBankService,
		Evaluator:         sm.config.Evaluator,
		Rounds:            sm.rounds,
		Publisher:         sm.config.Publisher,
		SubmissionTimeout: sm.config.SubmissionTimeout,
	})
	sm.logger.Info("TestSession service initialized")

	sm.leaveService = NewLeaveService(sm.repo, sm.logger, sm.validator, LeaveDeps{
		Source:    sm.config.Source,
		Sessions:  sm.testSessionService,
		Rounds:    sm.rounds,
		Publisher: sm.config.Publisher,
		Options:   sm.config.Leave,
	})
	sm.logger.Info("Leave service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters
func (sm *serviceManager) TestSession() TestSessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.testSessionService == nil {
		panic("service manager not initialized")
	}
	return sm.testSessionService
}

func (sm *serviceManager) Leave() LeaveService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.leaveService == nil {
		panic("service manager not initialized")
	}
	return sm.leaveService
}

func (sm *serviceManager) QuestionBank() QuestionBankService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.questionBankService == nil {
		panic("service manager not initialized")
	}
	return sm.questionBankService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if sm.config.RepositoryManager != nil {
		if err := sm.config.RepositoryManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
