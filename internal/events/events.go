package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "leave-assessment-service"
	EventVersion = "1.0"
)

// Event types double as topic names.
const (
	EventTestSessionSubmitted = "test_session.submitted"
	EventLeaveCreated         = "leave.created"
	EventLeaveResolved        = "leave.resolved"
	EventLeaveReviewed        = "leave.reviewed"
	EventEmailRequested       = "notification.email_requested"
)

type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher is the outbound side of the event bus used by services.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== PAYLOADS =====

type TestSessionSubmittedEvent struct {
	SessionID      uint    `json:"session_id"`
	UserID         *string `json:"user_id,omitempty"`
	LeaveRequestID *uint   `json:"leave_request_id,omitempty"`
	RoundNumber    int     `json:"round_number"`
	Score          int     `json:"score"`
	TotalPoints    int     `json:"total_points"`
	Percentage     float64 `json:"percentage"`
	Terminated     bool    `json:"terminated"`
}

type LeaveEvent struct {
	LeaveRequestID uint    `json:"leave_request_id"`
	StudentID      string  `json:"student_id"`
	Status         string  `json:"status"`
	OverallScore   float64 `json:"overall_score"`
	AutoApproved   bool    `json:"auto_approved"`
	ReviewedBy     *string `json:"reviewed_by,omitempty"`
	Comments       *string `json:"comments,omitempty"`
	Warning        *string `json:"warning,omitempty"`
}

type EmailNotification struct {
	To             string `json:"to"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	LeaveRequestID uint   `json:"leave_request_id"`
}
