package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

// roundResolver settles a leave request from its rounds. It is shared by the
// session service, which triggers it after every submit, and the leave
// service, which exposes it directly.
type roundResolver struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewRoundCompletionChecker(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger) RoundCompletionChecker {
	return &roundResolver{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// CheckRoundCompletion re-reads the request and its rounds under a row lock.
// Terminal requests and requests with unfinished rounds are returned as is.
func (r *roundResolver) CheckRoundCompletion(ctx context.Context, leaveID uint) (*models.LeaveRequest, error) {
	var leave *models.LeaveRequest
	resolved := false

	err := r.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		leave, err = r.repo.LeaveRequest().GetByIDForUpdate(ctx, tx, leaveID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrLeaveNotFound
			}
			return fmt.Errorf("failed to get leave request: %w", err)
		}

		if leave.Status.IsTerminal() || !leave.RoundsComplete() {
			return nil
		}

		leave.Resolve(leave.AggregateScore())
		if err := r.repo.LeaveRequest().Update(ctx, tx, leave); err != nil {
			return fmt.Errorf("failed to resolve leave request: %w", err)
		}
		resolved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resolved {
		return leave, nil
	}

	cache.InvalidateLeaveCache(ctx, r.repo.Cache(), leave.ID, leave.StudentID)
	metrics.LeaveResolutions.WithLabelValues(string(leave.Status)).Inc()
	publishEvent(ctx, r.publisher, r.logger, events.EventLeaveResolved, events.LeaveEvent{
		LeaveRequestID: leave.ID,
		StudentID:      leave.StudentID,
		Status:         string(leave.Status),
		OverallScore:   leave.OverallScore,
		AutoApproved:   leave.AutoApproved,
	})

	r.logger.InfoContext(ctx, "Leave request resolved successfully",
		"leave_request_id", leave.ID,
		"status", leave.Status,
		"overall_score", leave.OverallScore)

	return leave, nil
}
