package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
)

// ErrUserNotFound is returned by UserRepository implementations
var ErrUserNotFound = errors.New("user not found")

// Repository aggregates all repository interfaces
type Repository interface {
	TestSession() TestSessionRepository
	LeaveRequest() LeaveRequestRepository
	BankQuestion() BankQuestionRepository

	// User domain (read-only, owned by the identity provider)
	User() UserRepository

	Cache() *cache.CacheManager

	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// IsNotFoundError reports whether err means the record does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrUserNotFound)
}
