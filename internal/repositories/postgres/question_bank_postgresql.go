package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

var bankSortColumns = map[string]string{
	"created_at":  "created_at",
	"updated_at":  "updated_at",
	"usage_count": "usage_count",
	"difficulty":  "difficulty",
	"subject":     "subject",
	"id":          "id",
}

type questionBankRepository struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionBankRepository(db *gorm.DB, cacheManager *cache.CacheManager) repositories.BankQuestionRepository {
	return &questionBankRepository{db: db, cacheManager: cacheManager}
}

func (r *questionBankRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== BASIC CRUD OPERATIONS =====

func (r *questionBankRepository) Create(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	if err := r.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return handleDBError(err, "create bank question")
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Question, "list:*")
	return nil
}

func (r *questionBankRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error) {
	load := func(db *gorm.DB) (*models.BankQuestion, error) {
		var question models.BankQuestion
		if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
			return nil, handleDBError(err, "get bank question")
		}
		return &question, nil
	}
	if tx != nil {
		return load(tx)
	}

	var question models.BankQuestion
	err := r.cacheManager.Question.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		return load(r.db)
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionBankRepository) Update(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	if err := r.getDB(tx).WithContext(ctx).Save(question).Error; err != nil {
		return handleDBError(err, "update bank question")
	}
	cache.InvalidateQuestionCache(ctx, r.cacheManager, question.ID)
	return nil
}

// ===== QUERY OPERATIONS =====

func (r *questionBankRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.BankQuestionFilters) ([]*models.BankQuestion, int64, error) {
	var questions []*models.BankQuestion
	var total int64

	query := r.applyBankFilters(r.getDB(tx).WithContext(ctx).Model(&models.BankQuestion{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count bank questions")
	}

	query = applyPaginationAndSort(query, bankSortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, handleDBError(err, "list bank questions")
	}

	return questions, total, nil
}

// GetRandom draws up to Count active questions of the requested type
func (r *questionBankRepository) GetRandom(ctx context.Context, tx *gorm.DB, filters repositories.RandomQuestionFilters) ([]*models.BankQuestion, error) {
	var questions []*models.BankQuestion

	query := r.getDB(tx).WithContext(ctx).
		Where("is_active = ? AND type = ?", true, filters.Type)
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.Difficulty != nil && *filters.Difficulty != models.DifficultyMixed {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if len(filters.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filters.ExcludeIDs)
	}

	if err := query.Order("RANDOM()").Limit(filters.Count).Find(&questions).Error; err != nil {
		return nil, handleDBError(err, "draw random bank questions")
	}
	return questions, nil
}

func (r *questionBankRepository) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.BankQuestion{}).
		Where("id IN ?", ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		return handleDBError(err, "increment bank question usage")
	}
	for _, id := range ids {
		cache.SafeDelete(ctx, r.cacheManager.Question, fmt.Sprintf("id:%d", id))
	}
	return nil
}

func (r *questionBankRepository) applyBankFilters(query *gorm.DB, filters repositories.BankQuestionFilters) *gorm.DB {
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if len(filters.Tags) > 0 {
		if tags, err := json.Marshal(filters.Tags); err == nil {
			query = query.Where("tags @> ?::jsonb", string(tags))
		}
	}
	return query
}
