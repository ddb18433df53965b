package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

type captureSender struct {
	sent chan EmailNotification
}

func (c *captureSender) Send(ctx context.Context, n EmailNotification) error {
	c.sent <- n
	return nil
}

type staticUsers map[string]*models.User

func (s staticUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventLeaveCreated, LeaveEvent{LeaveRequestID: 7})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Source != EventSource || event.Version != EventVersion {
		t.Errorf("unexpected source/version %q/%q", event.Source, event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("Event timestamp should not be zero")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	mock.Publish(ctx, NewEvent(EventLeaveCreated, nil))
	mock.Publish(ctx, NewEvent(EventLeaveResolved, nil))
	mock.Publish(ctx, NewEvent(EventLeaveCreated, nil))

	if got := len(mock.GetPublishedEvents()); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	if got := len(mock.EventsOfType(EventLeaveCreated)); got != 2 {
		t.Errorf("expected 2 leave.created events, got %d", got)
	}

	mock.ClearEvents()
	if got := len(mock.GetPublishedEvents()); got != 0 {
		t.Errorf("expected no events after clear, got %d", got)
	}
}

func TestNotificationRouter_RelaysLeaveOutcome(t *testing.T) {
	logger := testLogger()
	bus, err := NewBus(BusConfig{}, logger)
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	sender := &captureSender{sent: make(chan EmailNotification, 1)}
	users := staticUsers{"student-1": {ID: "student-1", FullName: "An Nguyen", Email: "an@example.edu"}}

	router, err := NewNotificationRouter(bus, sender, users, logger)
	if err != nil {
		t.Fatalf("NewNotificationRouter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)
	<-router.Running()
	defer router.Close()

	publisher := NewWatermillPublisher(bus.Publisher, logger)
	err = publisher.Publish(ctx, NewEvent(EventLeaveResolved, LeaveEvent{
		LeaveRequestID: 42,
		StudentID:      "student-1",
		Status:         string(models.LeaveAutoRejected),
		OverallScore:   55,
	}))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case n := <-sender.sent:
		if n.To != "an@example.edu" || n.LeaveRequestID != 42 {
			t.Errorf("unexpected notification %+v", n)
		}
		if !strings.Contains(n.Subject, "auto rejected") {
			t.Errorf("subject %q should mention the outcome", n.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not relayed")
	}
}

func TestRenderLeaveEmail_IncludesReviewerComments(t *testing.T) {
	comments := "Approved after manual review"
	user := &models.User{FullName: "Binh Tran", Email: "binh@example.edu"}

	n := renderLeaveEmail(EventLeaveReviewed, LeaveEvent{LeaveRequestID: 3, Status: "approved", Comments: &comments}, user)

	if !strings.Contains(n.Body, comments) {
		t.Errorf("body should include reviewer comments: %q", n.Body)
	}
	if !strings.HasPrefix(n.Body, "Hello Binh Tran") {
		t.Errorf("body should greet the student: %q", n.Body)
	}
}
