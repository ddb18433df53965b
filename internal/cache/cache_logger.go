package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and only logs failures
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and only logs failures
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateSessionCache drops a session and the views that embed it
func InvalidateSessionCache(ctx context.Context, cm *CacheManager, sessionID uint, leaveID *uint) {
	SafeDelete(ctx, cm.Session, fmt.Sprintf("id:%d", sessionID))
	if leaveID != nil {
		SafeDelete(ctx, cm.Session, fmt.Sprintf("leave:%d", *leaveID))
		SafeDelete(ctx, cm.Leave, fmt.Sprintf("id:%d", *leaveID))
	}
}

// InvalidateLeaveCache drops a leave request and the lists containing it
func InvalidateLeaveCache(ctx context.Context, cm *CacheManager, leaveID uint, studentID string) {
	SafeDelete(ctx, cm.Leave, fmt.Sprintf("id:%d", leaveID))
	SafeDelete(ctx, cm.Session, fmt.Sprintf("leave:%d", leaveID))
	SafeInvalidatePattern(ctx, cm.Leave, fmt.Sprintf("student:%s:*", studentID))
	SafeInvalidatePattern(ctx, cm.Leave, "list:*")
}

// InvalidateQuestionCache drops a bank question and every cached listing
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, questionID uint) {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("id:%d", questionID))
	SafeInvalidatePattern(ctx, cm.Question, "list:*")
}
