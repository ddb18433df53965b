package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

// NotificationSender delivers a rendered email to the mail service.
type NotificationSender interface {
	Send(ctx context.Context, n EmailNotification) error
}

// RecipientLookup resolves a student id to a user with an email address.
type RecipientLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// EventNotificationSender hands emails to the mail service over the bus.
type EventNotificationSender struct {
	publisher EventPublisher
}

func NewEventNotificationSender(publisher EventPublisher) *EventNotificationSender {
	return &EventNotificationSender{publisher: publisher}
}

func (s *EventNotificationSender) Send(ctx context.Context, n EmailNotification) error {
	return s.publisher.Publish(ctx, NewEvent(EventEmailRequested, n))
}

type leaveNotifier struct {
	sender NotificationSender
	users  RecipientLookup
	logger *slog.Logger
}

// NewNotificationRouter relays leave outcomes to the student by email.
func NewNotificationRouter(bus *Bus, sender NotificationSender, users RecipientLookup, logger *slog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, bus.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	notifier := &leaveNotifier{sender: sender, users: users, logger: logger}
	router.AddNoPublisherHandler("notify_leave_resolved", EventLeaveResolved, bus.Subscriber, notifier.handle)
	router.AddNoPublisherHandler("notify_leave_reviewed", EventLeaveReviewed, bus.Subscriber, notifier.handle)

	return router, nil
}

func (n *leaveNotifier) handle(msg *message.Message) error {
	ctx := msg.Context()

	var payload LeaveEvent
	event, err := decodeEvent(msg, &payload)
	if err != nil {
		// malformed messages are dropped, retrying cannot fix them
		n.logger.ErrorContext(ctx, "Discarding undecodable leave event", "message_id", msg.UUID, "error", err)
		return nil
	}

	user, err := n.users.GetByID(ctx, payload.StudentID)
	if err != nil {
		return fmt.Errorf("failed to look up student %s: %w", payload.StudentID, err)
	}
	if user == nil || user.Email == "" {
		n.logger.WarnContext(ctx, "Student has no email address, skipping notification",
			"student_id", payload.StudentID,
			"leave_request_id", payload.LeaveRequestID)
		return nil
	}

	if err := n.sender.Send(ctx, renderLeaveEmail(event.Type, payload, user)); err != nil {
		return fmt.Errorf("failed to send leave notification: %w", err)
	}

	n.logger.InfoContext(ctx, "Leave notification sent",
		"leave_request_id", payload.LeaveRequestID,
		"status", payload.Status,
		"event_type", event.Type)
	return nil
}

func renderLeaveEmail(eventType string, e LeaveEvent, user *models.User) EmailNotification {
	status := strings.ReplaceAll(e.Status, "-", " ")

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", user.FullName)
	fmt.Fprintf(&body, "Your leave request #%d is now %s.\n", e.LeaveRequestID, status)
	fmt.Fprintf(&body, "Overall assessment score: %.1f%%\n", e.OverallScore)
	if eventType == EventLeaveReviewed && e.Comments != nil && *e.Comments != "" {
		fmt.Fprintf(&body, "\nReviewer comments: %s\n", *e.Comments)
	}

	return EmailNotification{
		To:             user.Email,
		Name:           user.FullName,
		Subject:        fmt.Sprintf("Leave request #%d %s", e.LeaveRequestID, status),
		Body:           body.String(),
		LeaveRequestID: e.LeaveRequestID,
	}
}
