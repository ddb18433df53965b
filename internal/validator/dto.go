package validator

import (
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

// LeaveCreateRequest represents the request structure for applying for leave
type LeaveCreateRequest struct {
	LeaveType  models.LeaveType `json:"leave_type" validate:"required,leave_type"`
	StartDate  *models.Date     `json:"start_date" validate:"required"`
	EndDate    *models.Date     `json:"end_date" validate:"required"`
	Reason     string           `json:"reason" validate:"required,leave_reason"`
	Topic      string           `json:"topic" validate:"omitempty,max=100"`
	Difficulty string           `json:"difficulty" validate:"omitempty,question_difficulty"`
}

// LeaveReviewRequest represents an admin decision on a leave request
type LeaveReviewRequest struct {
	Status         models.LeaveStatus `json:"status" validate:"omitempty,oneof=approved rejected"`
	Comments       string             `json:"comments" validate:"omitempty,max=1000"`
	ManualOverride bool               `json:"manual_override"`
}

// AntiCheatSnapshot is the client's view of anti-cheat counters at submit time
type AntiCheatSnapshot struct {
	TabSwitches          int      `json:"tab_switches" validate:"min=0"`
	CopyAttempts         int      `json:"copy_attempts" validate:"min=0"`
	SuspiciousActivities []string `json:"suspicious_activities" validate:"omitempty,max=500,dive,max=500"`
}

// TestSubmitRequest finalises a round. Answers are positional.
type TestSubmitRequest struct {
	Answers       []string           `json:"answers" validate:"omitempty,max=100"`
	AntiCheatData *AntiCheatSnapshot `json:"anti_cheat_data"`
}

type MCQAnswerRequest struct {
	Answer string `json:"answer" validate:"required,max=1000"`
}

type CodingAnswerRequest struct {
	Code string `json:"code" validate:"required,max=20000"`
}

type AntiCheatReportRequest struct {
	Type    models.AntiCheatType `json:"type" validate:"required,anti_cheat_type"`
	Details string               `json:"details" validate:"omitempty,max=500"`
}

// AdHocSessionRequest creates a standalone practice session
type AdHocSessionRequest struct {
	Topic        string              `json:"topic" validate:"required,min=1,max=100"`
	Type         models.QuestionType `json:"type" validate:"required,oneof=mcq coding"`
	Difficulty   string              `json:"difficulty" validate:"omitempty,question_difficulty"`
	NumQuestions int                 `json:"num_questions" validate:"required,min=1,max=20"`
	Duration     int                 `json:"duration" validate:"required,min=5,max=180"`
	Source       string              `json:"source" validate:"omitempty,oneof=ai bank"`
}

type TestCaseRequest struct {
	Input          string `json:"input" validate:"max=5000"`
	ExpectedOutput string `json:"expected_output" validate:"max=5000"`
	Hidden         bool   `json:"is_hidden"`
}

// BankQuestionCreateRequest represents the request structure for creating bank questions
type BankQuestionCreateRequest struct {
	Type          models.QuestionType    `json:"type" validate:"required,oneof=mcq coding"`
	Subject       models.Subject         `json:"subject" validate:"required,subject"`
	Difficulty    models.DifficultyLevel `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Prompt        string                 `json:"question" validate:"required,min=1,max=2000"`
	Points        int                    `json:"points" validate:"required,min=1,max=100"`
	Explanation   string                 `json:"explanation" validate:"omitempty,max=1000"`
	Options       []string               `json:"options" validate:"omitempty,max=10,dive,min=1,max=500"`
	CorrectAnswer string                 `json:"correct_answer" validate:"omitempty,max=500"`
	CodeTemplate  string                 `json:"code_template" validate:"omitempty,max=5000"`
	TestCases     []TestCaseRequest      `json:"test_cases" validate:"omitempty,max=20,dive"`
	Constraints   string                 `json:"constraints" validate:"omitempty,max=500"`
	Tags          []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// BankQuestionUpdateRequest represents a partial update of a bank question
type BankQuestionUpdateRequest struct {
	Subject       *models.Subject         `json:"subject" validate:"omitempty,subject"`
	Difficulty    *models.DifficultyLevel `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Prompt        *string                 `json:"question" validate:"omitempty,min=1,max=2000"`
	Points        *int                    `json:"points" validate:"omitempty,min=1,max=100"`
	Explanation   *string                 `json:"explanation" validate:"omitempty,max=1000"`
	Options       []string                `json:"options" validate:"omitempty,max=10,dive,min=1,max=500"`
	CorrectAnswer *string                 `json:"correct_answer" validate:"omitempty,max=500"`
	CodeTemplate  *string                 `json:"code_template" validate:"omitempty,max=5000"`
	TestCases     []TestCaseRequest       `json:"test_cases" validate:"omitempty,max=20,dive"`
	Constraints   *string                 `json:"constraints" validate:"omitempty,max=500"`
	Tags          []string                `json:"tags" validate:"omitempty,max=10,dive,max=50"`
	IsActive      *bool                   `json:"is_active"`
}
