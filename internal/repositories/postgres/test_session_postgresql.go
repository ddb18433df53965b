package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

type TestSessionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewTestSessionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.TestSessionRepository {
	return &TestSessionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (r *TestSessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *TestSessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.TestSession) error {
	if err := r.getDB(tx).WithContext(ctx).Create(session).Error; err != nil {
		return handleDBError(err, "create test session")
	}
	if session.LeaveRequestID != nil {
		cache.SafeDelete(ctx, r.cacheManager.Session, fmt.Sprintf("leave:%d", *session.LeaveRequestID))
	}
	return nil
}

// GetByID serves from cache outside transactions only
func (r *TestSessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error) {
	if tx != nil {
		return r.load(ctx, tx, id)
	}

	var session models.TestSession
	err := r.cacheManager.Session.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &session, cache.SessionCacheConfig.TTL, func() (interface{}, error) {
		return r.load(ctx, r.db, id)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *TestSessionPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := forUpdate(r.getDB(tx).WithContext(ctx)).First(&session, id).Error; err != nil {
		return nil, handleDBError(err, "lock test session")
	}
	return &session, nil
}

func (r *TestSessionPostgreSQL) load(ctx context.Context, db *gorm.DB, id uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, handleDBError(err, "get test session")
	}
	return &session, nil
}

func (r *TestSessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.TestSession) error {
	if err := r.getDB(tx).WithContext(ctx).Save(session).Error; err != nil {
		return handleDBError(err, "update test session")
	}
	cache.InvalidateSessionCache(ctx, r.cacheManager, session.ID, session.LeaveRequestID)
	return nil
}

func (r *TestSessionPostgreSQL) ListByLeave(ctx context.Context, tx *gorm.DB, leaveID uint) ([]*models.TestSession, error) {
	var sessions []*models.TestSession
	if err := r.getDB(tx).WithContext(ctx).
		Where("leave_request_id = ?", leaveID).
		Order("round_number ASC").
		Find(&sessions).Error; err != nil {
		return nil, handleDBError(err, "list leave rounds")
	}
	return sessions, nil
}

func (r *TestSessionPostgreSQL) GetByLeaveAndRound(ctx context.Context, tx *gorm.DB, leaveID uint, round int) (*models.TestSession, error) {
	var session models.TestSession
	if err := r.getDB(tx).WithContext(ctx).
		Where("leave_request_id = ? AND round_number = ?", leaveID, round).
		First(&session).Error; err != nil {
		return nil, handleDBError(err, "get leave round")
	}
	return &session, nil
}

func (r *TestSessionPostgreSQL) FindActiveForLeave(ctx context.Context, tx *gorm.DB, leaveID uint, userID string) (*models.TestSession, error) {
	var session models.TestSession
	if err := r.getDB(tx).WithContext(ctx).
		Where("leave_request_id = ? AND user_id = ?", leaveID, userID).
		Where("status IN ?", []models.SessionStatus{models.SessionNotStarted, models.SessionInProgress}).
		Order("round_number ASC").
		First(&session).Error; err != nil {
		return nil, handleDBError(err, "find active leave round")
	}
	return &session, nil
}

func (r *TestSessionPostgreSQL) RecordAntiCheat(ctx context.Context, tx *gorm.DB, id uint, kind models.AntiCheatType, entry string) error {
	updates := map[string]interface{}{}
	if entry != "" {
		updates["suspicious_logs"] = gorm.Expr("COALESCE(suspicious_logs, '[]'::jsonb) || jsonb_build_array(?::text)", entry)
	}
	switch kind {
	case models.AntiCheatTabSwitch:
		updates["tab_switches"] = gorm.Expr("tab_switches + 1")
	case models.AntiCheatCopyAttempt:
		updates["copy_attempts"] = gorm.Expr("copy_attempts + 1")
	}
	updates["updated_at"] = time.Now()

	result := r.getDB(tx).WithContext(ctx).
		Model(&models.TestSession{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return handleDBError(result.Error, "record anti-cheat event")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "record anti-cheat event")
	}

	cache.SafeDelete(ctx, r.cacheManager.Session, fmt.Sprintf("id:%d", id))
	return nil
}
