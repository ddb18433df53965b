package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/evaluator"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateLeaveRequest = validator.LeaveCreateRequest
type ReviewLeaveRequest = validator.LeaveReviewRequest
type SubmitTestRequest = validator.TestSubmitRequest
type AdHocSessionRequest = validator.AdHocSessionRequest
type CreateBankQuestionRequest = validator.BankQuestionCreateRequest
type UpdateBankQuestionRequest = validator.BankQuestionUpdateRequest

// AnswerPayload carries one recorded answer. Kind must match the question.
type AnswerPayload struct {
	Kind   models.QuestionType
	Answer string // selected option, mcq
	Code   string // source text, coding
}

// ===== TEST SESSION DTOs =====

type SessionQuestionView struct {
	ID           string              `json:"id"`
	Type         models.QuestionType `json:"type"`
	Question     string              `json:"question"`
	Points       int                 `json:"points"`
	Options      []string            `json:"options,omitempty"`
	CodeTemplate string              `json:"code_template,omitempty"`
	Constraints  string              `json:"constraints,omitempty"`
	TestCases    []models.TestCase   `json:"test_cases,omitempty"`

	SelectedAnswer *string `json:"selected_answer,omitempty"`
	SubmittedCode  *string `json:"submitted_code,omitempty"`

	// Filled once the session is terminal
	IsCorrect *bool `json:"is_correct,omitempty"`
	Score     *int  `json:"score,omitempty"`
	Passed    *int  `json:"passed,omitempty"`
	Failed    *int  `json:"failed,omitempty"`

	// Admin only
	CorrectAnswer *string `json:"correct_answer,omitempty"`
	Explanation   string  `json:"explanation,omitempty"`
}

type TestSessionResponse struct {
	ID             uint                 `json:"id"`
	UserID         *string              `json:"user_id,omitempty"`
	LeaveRequestID *uint                `json:"leave_request_id,omitempty"`
	TestType       models.QuestionType  `json:"test_type"`
	RoundNumber    int                  `json:"round_number"`
	Topic          string               `json:"topic,omitempty"`
	Difficulty     string               `json:"difficulty,omitempty"`
	Status         models.SessionStatus `json:"status"`
	Duration       int                  `json:"duration"`
	StartTime      *time.Time           `json:"start_time"`
	EndTime        *time.Time           `json:"end_time"`
	SubmittedAt    *time.Time           `json:"submitted_at"`
	TimeRemaining  int                  `json:"time_remaining"` // seconds
	TotalPoints    int                  `json:"total_points"`

	Score      *int     `json:"score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`

	TabSwitches    int      `json:"tab_switches"`
	CopyAttempts   int      `json:"copy_attempts"`
	SuspiciousLogs []string `json:"suspicious_logs,omitempty"`

	Questions []SessionQuestionView `json:"questions"`

	// Set when the read forced the round to finish
	Terminated bool    `json:"terminated,omitempty"`
	Message    string  `json:"message,omitempty"`
	Warning    *string `json:"warning,omitempty"`
}

type SubmitResult struct {
	SessionID   uint                 `json:"session_id"`
	Status      models.SessionStatus `json:"status"`
	Score       int                  `json:"score"`
	TotalPoints int                  `json:"total_points"`
	Percentage  float64              `json:"percentage"`
}

// ===== LEAVE DTOs =====

type RoundSummary struct {
	ID           uint                 `json:"id"`
	RoundNumber  int                  `json:"round_number"`
	TestType     models.QuestionType  `json:"test_type"`
	Status       models.SessionStatus `json:"status"`
	Duration     int                  `json:"duration"`
	TotalPoints  int                  `json:"total_points"`
	Score        int                  `json:"score"`
	Percentage   float64              `json:"percentage"`
	StartTime    *time.Time           `json:"start_time"`
	SubmittedAt  *time.Time           `json:"submitted_at"`
	TabSwitches  int                  `json:"tab_switches"`
	CopyAttempts int                  `json:"copy_attempts"`
}

type LeaveResponse struct {
	ID               uint               `json:"id"`
	StudentID        string             `json:"student_id"`
	LeaveType        models.LeaveType   `json:"leave_type"`
	StartDate        models.Date        `json:"start_date"`
	EndDate          models.Date        `json:"end_date"`
	Reason           string             `json:"reason"`
	Status           models.LeaveStatus `json:"status"`
	OverallScore     float64            `json:"overall_score"`
	PassingThreshold float64            `json:"passing_threshold"`
	AutoApproved     bool               `json:"auto_approved"`
	AdminReview      models.AdminReview `json:"admin_review"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	Rounds  []RoundSummary `json:"rounds"`
	Student *models.User   `json:"student,omitempty"`

	// Non-fatal advisory, e.g. questions came from the fallback set
	Warning *string `json:"warning"`
}

type LeaveListResponse struct {
	Leaves []*LeaveResponse `json:"leave_requests"`
	Total  int64            `json:"total"`
	Page   int              `json:"page"`
	Size   int              `json:"size"`
	Pages  int              `json:"pages"`
}

type MonthlyLeaveStat struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// DepartmentLeaveStat buckets leave requests by the student's department.
// Pending includes requests still in testing; Rejected includes auto-rejections.
type DepartmentLeaveStat struct {
	Department string `json:"department"`
	Approved   int64  `json:"approved"`
	Pending    int64  `json:"pending"`
	Rejected   int64  `json:"rejected"`
	Total      int64  `json:"total"`
}

// ===== QUESTION BANK DTOs =====

type BankQuestionListResponse struct {
	Questions []*models.BankQuestion `json:"questions"`
	Total     int64                  `json:"total"`
	Page      int                    `json:"page"`
	Size      int                    `json:"size"`
}

// ===== COLLABORATORS =====

// QuestionSource returns a batch of questions; it degrades instead of failing
type QuestionSource interface {
	Fetch(ctx context.Context, req questionsource.Request) questionsource.Batch
}

// CodeEvaluator runs a coding answer against its test cases
type CodeEvaluator interface {
	Evaluate(ctx context.Context, code string, cases []models.TestCase) evaluator.Result
}

// RoundCompletionChecker resolves a leave request once all its rounds are done
type RoundCompletionChecker interface {
	CheckRoundCompletion(ctx context.Context, leaveID uint) (*models.LeaveRequest, error)
}

// ===== SERVICE INTERFACES =====

type TestSessionService interface {
	// State machine
	Start(ctx context.Context, sessionID uint, userID string) (*TestSessionResponse, error)
	RecordAnswer(ctx context.Context, sessionID uint, questionID string, userID string, payload AnswerPayload) error
	Submit(ctx context.Context, sessionID uint, userID string, req *SubmitTestRequest) (*SubmitResult, error)
	ReportAntiCheat(ctx context.Context, sessionID uint, userID string, kind models.AntiCheatType, details string) error
	Abandon(ctx context.Context, sessionID uint, userID string) (*TestSessionResponse, error)

	// Read and ad hoc creation
	Get(ctx context.Context, sessionID uint, userID string, role models.UserRole) (*TestSessionResponse, error)
	CreateAdHoc(ctx context.Context, userID string, req *AdHocSessionRequest) (*TestSessionResponse, error)
}

type LeaveService interface {
	// Workflow
	Create(ctx context.Context, studentID string, req *CreateLeaveRequest) (*LeaveResponse, error)
	CheckRoundCompletion(ctx context.Context, leaveID uint) (*LeaveResponse, error)
	Review(ctx context.Context, leaveID uint, reviewerID string, req *ReviewLeaveRequest) (*LeaveResponse, error)
	GetCurrentSession(ctx context.Context, leaveID uint, studentID string) (*TestSessionResponse, error)

	// Read operations
	GetByID(ctx context.Context, leaveID uint, userID string, role models.UserRole) (*LeaveResponse, error)
	ListMine(ctx context.Context, studentID string, filters repositories.LeaveFilters) (*LeaveListResponse, error)
	List(ctx context.Context, filters repositories.LeaveFilters) (*LeaveListResponse, error)
	Export(ctx context.Context, filters repositories.LeaveFilters) ([]byte, error)

	// Statistics
	MonthlyStats(ctx context.Context) ([]MonthlyLeaveStat, error)
	DepartmentStats(ctx context.Context) ([]DepartmentLeaveStat, error)
}

type QuestionBankService interface {
	Create(ctx context.Context, req *CreateBankQuestionRequest, creatorID string) (*models.BankQuestion, error)
	Update(ctx context.Context, id uint, req *UpdateBankQuestionRequest, userID string) (*models.BankQuestion, error)
	Deactivate(ctx context.Context, id uint, userID string) error
	GetByID(ctx context.Context, id uint) (*models.BankQuestion, error)
	List(ctx context.Context, filters repositories.BankQuestionFilters) (*BankQuestionListResponse, error)

	// Draw picks random active questions, topping up from the question
	// source when the bank runs short. The bool reports a fallback top-up.
	Draw(ctx context.Context, subject *models.Subject, questionType models.QuestionType, difficulty models.DifficultyLevel, count int) ([]models.Question, bool, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	TestSession() TestSessionService
	Leave() LeaveService
	QuestionBank() QuestionBankService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
