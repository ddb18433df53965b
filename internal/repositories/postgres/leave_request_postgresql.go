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

var leaveSortColumns = map[string]string{
	"created_at":    "created_at",
	"updated_at":    "updated_at",
	"start_date":    "start_date",
	"overall_score": "overall_score",
	"status":        "status",
	"id":            "id",
}

type LeaveRequestPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewLeaveRequestPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.LeaveRequestRepository {
	return &LeaveRequestPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *LeaveRequestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func preloadRounds(db *gorm.DB) *gorm.DB {
	return db.Preload("Rounds", func(db *gorm.DB) *gorm.DB {
		return db.Order("round_number ASC")
	})
}

// Create inserts the leave request together with any attached rounds
func (r *LeaveRequestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error {
	if err := r.getDB(tx).WithContext(ctx).Create(leave).Error; err != nil {
		return handleDBError(err, "create leave request")
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Leave, fmt.Sprintf("student:%s:*", leave.StudentID))
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Leave, "list:*")
	return nil
}

func (r *LeaveRequestPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error) {
	if tx != nil {
		return r.load(ctx, tx, id)
	}

	var leave models.LeaveRequest
	err := r.cacheManager.Leave.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &leave, cache.LeaveCacheConfig.TTL, func() (interface{}, error) {
		return r.load(ctx, r.db, id)
	})
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

func (r *LeaveRequestPostgreSQL) load(ctx context.Context, db *gorm.DB, id uint) (*models.LeaveRequest, error) {
	var leave models.LeaveRequest
	if err := preloadRounds(db.WithContext(ctx)).First(&leave, id).Error; err != nil {
		return nil, handleDBError(err, "get leave request")
	}
	return &leave, nil
}

// GetByIDForUpdate locks the leave row; rounds are read in the same
// transaction so they reflect committed submissions
func (r *LeaveRequestPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error) {
	db := r.getDB(tx).WithContext(ctx)

	var leave models.LeaveRequest
	if err := forUpdate(db).First(&leave, id).Error; err != nil {
		return nil, handleDBError(err, "lock leave request")
	}
	if err := db.Where("leave_request_id = ?", id).Order("round_number ASC").Find(&leave.Rounds).Error; err != nil {
		return nil, handleDBError(err, "load leave rounds")
	}
	return &leave, nil
}

// Update saves the leave row only; rounds are owned by the session repository
func (r *LeaveRequestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error {
	if err := r.getDB(tx).WithContext(ctx).Omit("Rounds").Save(leave).Error; err != nil {
		return handleDBError(err, "update leave request")
	}
	cache.InvalidateLeaveCache(ctx, r.cacheManager, leave.ID, leave.StudentID)
	return nil
}

func (r *LeaveRequestPostgreSQL) HasOverlap(ctx context.Context, tx *gorm.DB, studentID string, start, end time.Time) (bool, error) {
	var count int64
	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.LeaveRequest{}).
		Where("student_id = ?", studentID).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check leave overlap")
	}
	return count > 0, nil
}

func (r *LeaveRequestPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.LeaveFilters) ([]*models.LeaveRequest, int64, error) {
	filters.StudentID = &studentID
	if filters.SortBy == "" {
		filters.SortBy = "created_at"
		filters.SortOrder = "desc"
	}
	return r.List(ctx, tx, filters)
}

func (r *LeaveRequestPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.LeaveFilters) ([]*models.LeaveRequest, int64, error) {
	db := r.getDB(tx).WithContext(ctx)

	var leaves []*models.LeaveRequest
	var total int64

	query := r.applyLeaveFilters(db.Model(&models.LeaveRequest{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count leave requests")
	}

	query = applyPaginationAndSort(query, leaveSortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := preloadRounds(query).Find(&leaves).Error; err != nil {
		return nil, 0, handleDBError(err, "list leave requests")
	}

	return leaves, total, nil
}

// ===== STATISTICS =====

func (r *LeaveRequestPostgreSQL) CountByMonth(ctx context.Context, tx *gorm.DB) ([]repositories.MonthlyCount, error) {
	var results []repositories.MonthlyCount
	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.LeaveRequest{}).
		Select("CAST(EXTRACT(MONTH FROM created_at) AS INTEGER) AS month, COUNT(*) AS count").
		Group("month").
		Order("month ASC").
		Scan(&results).Error; err != nil {
		return nil, handleDBError(err, "count leave requests by month")
	}
	return results, nil
}

func (r *LeaveRequestPostgreSQL) CountByStudentAndStatus(ctx context.Context, tx *gorm.DB) ([]repositories.StudentStatusCount, error) {
	var results []repositories.StudentStatusCount
	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.LeaveRequest{}).
		Select("student_id, status, COUNT(*) AS count").
		Group("student_id, status").
		Scan(&results).Error; err != nil {
		return nil, handleDBError(err, "count leave requests by student")
	}
	return results, nil
}

func (r *LeaveRequestPostgreSQL) applyLeaveFilters(query *gorm.DB, filters repositories.LeaveFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.LeaveType != nil {
		query = query.Where("leave_type = ?", *filters.LeaveType)
	}
	if filters.DateFrom != nil {
		query = query.Where("end_date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("start_date <= ?", *filters.DateTo)
	}
	return query
}
