package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type LeaveFilters struct {
	Status    *models.LeaveStatus `json:"status"`
	StudentID *string             `json:"student_id"`
	LeaveType *models.LeaveType   `json:"leave_type"`
	DateFrom  *time.Time          `json:"date_from"`
	DateTo    *time.Time          `json:"date_to"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
	SortBy    string              `json:"sort_by"`    // "created_at", "start_date", "overall_score"
	SortOrder string              `json:"sort_order"` // "asc", "desc"
}

type BankQuestionFilters struct {
	Subject    *models.Subject         `json:"subject"`
	Type       *models.QuestionType    `json:"type"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	IsActive   *bool                   `json:"is_active"`
	CreatedBy  *string                 `json:"created_by"`
	Tags       []string                `json:"tags"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

type RandomQuestionFilters struct {
	Subject    *models.Subject         `json:"subject"`
	Type       models.QuestionType     `json:"type"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	ExcludeIDs []uint                  `json:"exclude_ids"`
	Count      int                     `json:"count"`
}

// ===== AGGREGATES =====

// MonthlyCount is the number of leave requests created in a calendar month
// (1-12), summed across years.
type MonthlyCount struct {
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

type StudentStatusCount struct {
	StudentID string             `json:"student_id"`
	Status    models.LeaveStatus `json:"status"`
	Count     int64              `json:"count"`
}

// ===== REPOSITORY INTERFACES =====

// TestSessionRepository persists test sessions. Reads without a transaction
// may be served from cache; ForUpdate reads always hit the database and lock
// the row until tx ends.
type TestSessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.TestSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.TestSession) error

	ListByLeave(ctx context.Context, tx *gorm.DB, leaveID uint) ([]*models.TestSession, error)
	GetByLeaveAndRound(ctx context.Context, tx *gorm.DB, leaveID uint, round int) (*models.TestSession, error)
	// FindActiveForLeave returns the lowest not-started or in-progress round.
	FindActiveForLeave(ctx context.Context, tx *gorm.DB, leaveID uint, userID string) (*models.TestSession, error)

	// RecordAntiCheat increments the counter for kind and appends entry, when
	// not empty, in a single UPDATE.
	RecordAntiCheat(ctx context.Context, tx *gorm.DB, id uint, kind models.AntiCheatType, entry string) error
}

type LeaveRequestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error)
	Update(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error

	// HasOverlap reports whether any request of the student intersects
	// [start, end], whatever its status.
	HasOverlap(ctx context.Context, tx *gorm.DB, studentID string, start, end time.Time) (bool, error)

	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters LeaveFilters) ([]*models.LeaveRequest, int64, error)
	List(ctx context.Context, tx *gorm.DB, filters LeaveFilters) ([]*models.LeaveRequest, int64, error)

	// Statistics
	CountByMonth(ctx context.Context, tx *gorm.DB) ([]MonthlyCount, error)
	CountByStudentAndStatus(ctx context.Context, tx *gorm.DB) ([]StudentStatusCount, error)
}

type BankQuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	List(ctx context.Context, tx *gorm.DB, filters BankQuestionFilters) ([]*models.BankQuestion, int64, error)

	GetRandom(ctx context.Context, tx *gorm.DB, filters RandomQuestionFilters) ([]*models.BankQuestion, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error
}
