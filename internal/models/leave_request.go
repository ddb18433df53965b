package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveCasual    LeaveType = "casual"
	LeaveEmergency LeaveType = "emergency"
	LeaveFestive   LeaveType = "festive"
	LeaveExam      LeaveType = "exam"
	LeavePersonal  LeaveType = "personal"
	LeaveOther     LeaveType = "other"
)

type LeaveStatus string

const (
	LeavePending      LeaveStatus = "pending"
	LeaveTesting      LeaveStatus = "testing"
	LeaveApproved     LeaveStatus = "approved"
	LeaveRejected     LeaveStatus = "rejected"
	LeaveAutoRejected LeaveStatus = "auto-rejected"
)

func (s LeaveStatus) IsTerminal() bool {
	return s == LeaveApproved || s == LeaveRejected || s == LeaveAutoRejected
}

const DefaultPassingThreshold = 70.0

var ErrLeaveDateRange = errors.New("end date must not be before start date")

type AdminReview struct {
	ReviewedBy     *string    `json:"reviewed_by" gorm:"size:255"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	Comments       *string    `json:"comments" gorm:"type:text"`
	ManualOverride bool       `json:"manual_override" gorm:"default:false"`
}

type LeaveRequest struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	StudentID string      `json:"student_id" gorm:"not null;index;size:255"`
	LeaveType LeaveType   `json:"leave_type" gorm:"not null;size:20"`
	StartDate time.Time   `json:"start_date" gorm:"type:date;not null;index"`
	EndDate   time.Time   `json:"end_date" gorm:"type:date;not null;index"`
	Reason    string      `json:"reason" gorm:"type:text;not null"`
	Status    LeaveStatus `json:"status" gorm:"default:pending;index;size:20"`

	// Outcome
	OverallScore     float64     `json:"overall_score"`
	PassingThreshold float64     `json:"passing_threshold" gorm:"default:70"`
	AutoApproved     bool        `json:"auto_approved" gorm:"default:false"`
	AdminReview      AdminReview `json:"admin_review" gorm:"embedded;embeddedPrefix:review_"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Rounds  []TestSession `json:"rounds" gorm:"foreignKey:LeaveRequestID"`
	Student *User         `json:"student,omitempty" gorm:"-"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// BeforeSave rejects inverted date ranges on every persist.
func (l *LeaveRequest) BeforeSave(tx *gorm.DB) error {
	if l.EndDate.Before(l.StartDate) {
		return ErrLeaveDateRange
	}
	return nil
}

// Overlaps reports whether [start, end] intersects the request's range.
func (l *LeaveRequest) Overlaps(start, end time.Time) bool {
	return !l.StartDate.After(end) && !l.EndDate.Before(start)
}

// RoundsComplete reports whether every attached round has been completed.
func (l *LeaveRequest) RoundsComplete() bool {
	if len(l.Rounds) == 0 {
		return false
	}
	for _, r := range l.Rounds {
		if r.Status != SessionCompleted {
			return false
		}
	}
	return true
}

// AggregateScore sums score and points over completed rounds and returns the
// overall percentage.
func (l *LeaveRequest) AggregateScore() float64 {
	score, total := 0, 0
	for _, r := range l.Rounds {
		if r.Status != SessionCompleted {
			continue
		}
		score += r.Score
		total += r.TotalPoints
	}
	return Percentage(score, total)
}

// Resolve applies the threshold outcome for a fully completed set of rounds.
func (l *LeaveRequest) Resolve(overall float64) {
	l.OverallScore = overall
	if overall >= l.PassingThreshold {
		l.Status = LeaveApproved
		l.AutoApproved = true
		return
	}
	l.Status = LeaveAutoRejected
	l.AutoApproved = false
}
