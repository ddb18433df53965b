package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// publishEvent is best effort: a bus outage never fails the operation that
// produced the event
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType string, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			"event_type", eventType,
			"error", err)
	}
}

// pageInfo mirrors the repository's limit clamping so responses report the
// page size that was actually applied
func pageInfo(limit, offset int, total int64) (page, size, pages int) {
	size = limit
	switch {
	case size == 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	case size < 0:
		size = int(total)
	}
	if size <= 0 {
		return 1, 0, 0
	}
	page = offset/size + 1
	pages = int((total + int64(size) - 1) / int64(size))
	return page, size, pages
}

func timePtr(now time.Time) *time.Time {
	return &now
}

func stringPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}

func float64Ptr(f float64) *float64 {
	return &f
}
