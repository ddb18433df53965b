package models

import (
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not-started"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionExpired
}

type AntiCheatType string

const (
	AntiCheatTabSwitch   AntiCheatType = "tab-switch"
	AntiCheatCopyAttempt AntiCheatType = "copy-attempt"
)

const (
	MCQRoundDuration    = 20 // minutes
	CodingRoundDuration = 45 // minutes
)

// SessionQuestion is the denormalised copy of a question inside a session.
// ID is assigned once at creation and never changes.
type SessionQuestion struct {
	ID string `json:"id"`
	Question

	// Per-attempt fields
	SelectedAnswer *string `json:"selected_answer,omitempty"`
	SubmittedCode  *string `json:"submitted_code,omitempty"`
	IsCorrect      *bool   `json:"is_correct,omitempty"`
	Score          int     `json:"score"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
}

// Answered reports whether a response of the matching kind has been captured.
func (q *SessionQuestion) Answered() bool {
	switch q.Type {
	case QuestionMCQ:
		return q.SelectedAnswer != nil && *q.SelectedAnswer != ""
	case QuestionCoding:
		return q.SubmittedCode != nil && *q.SubmittedCode != ""
	}
	return false
}

type TestSession struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	UserID         *string      `json:"user_id" gorm:"index;size:255"`
	LeaveRequestID *uint        `json:"leave_request_id" gorm:"index"`
	TestType       QuestionType `json:"test_type" gorm:"not null;size:20"`
	RoundNumber    int          `json:"round_number" gorm:"not null;default:1"`
	Topic          string       `json:"topic" gorm:"size:100"`
	Difficulty     string       `json:"difficulty" gorm:"size:20"`

	Questions datatypes.JSONSlice[SessionQuestion] `json:"questions" gorm:"type:jsonb"`

	// Timing
	Duration    int           `json:"duration"` // minutes
	Status      SessionStatus `json:"status" gorm:"default:not-started;index;size:20"`
	StartTime   *time.Time    `json:"start_time"`
	EndTime     *time.Time    `json:"end_time"`
	SubmittedAt *time.Time    `json:"submitted_at"`

	// Scoring
	TotalPoints int     `json:"total_points"`
	Score       int     `json:"score"`
	Percentage  float64 `json:"percentage"`

	// Anti-cheat
	TabSwitches    int                         `json:"tab_switches"`
	CopyAttempts   int                         `json:"copy_attempts"`
	SuspiciousLogs datatypes.JSONSlice[string] `json:"suspicious_logs" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// Elapsed returns the time spent since the session was started.
func (s *TestSession) Elapsed(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	return now.Sub(*s.StartTime)
}

// IsOverdue reports whether an in-progress session has exceeded its budget.
func (s *TestSession) IsOverdue(now time.Time) bool {
	return s.Status == SessionInProgress && s.Elapsed(now) > time.Duration(s.Duration)*time.Minute
}

// IsOwnedBy reports whether userID may act on the session. Unassigned ad hoc
// sessions are open to any student.
func (s *TestSession) IsOwnedBy(userID string) bool {
	return s.UserID == nil || *s.UserID == userID
}

// FindQuestion returns the index of the embedded question with id, or -1.
func (s *TestSession) FindQuestion(id string) int {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// SumPoints returns the total points of the embedded questions.
func (s *TestSession) SumPoints() int {
	total := 0
	for _, q := range s.Questions {
		total += q.Points
	}
	return total
}

// Percentage returns 100*score/total, or 0 when total is not positive.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(score) / float64(total)
}
