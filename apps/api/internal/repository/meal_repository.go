package repository

import (
	"context"
	"time"

	"DietServer/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// mealRepositoryImpl 饮食记录数据访问层实现
type mealRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewMealRepository 创建饮食记录仓储实例
func NewMealRepository(db *gorm.DB, redisClient *redis.Client) IMealRepository {
	return &mealRepositoryImpl{db: db, redisClient: redisClient}
}

// Create 创建饮食记录
func (r *mealRepositoryImpl) Create(ctx context.Context, record *model.MealRecord) (*model.MealRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return record, nil
}

// GetByID 根据ID获取饮食记录
func (r *mealRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.MealRecord, error) {
	var record model.MealRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &record, nil
}

// ListByUsers 查询一组用户在时间区间内的饮食记录
// 命中 idx_user_eaten 组合索引，按用餐时间倒序
func (r *mealRepositoryImpl) ListByUsers(ctx context.Context, userUUIDs []string, from, to time.Time, page, pageSize int) ([]*model.MealRecord, int64, error) {
	if len(userUUIDs) == 0 {
		return []*model.MealRecord{}, 0, nil
	}

	// 兜底分页参数
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).
		Model(&model.MealRecord{}).
		Where("user_uuid IN ?", userUUIDs)
	if !from.IsZero() {
		query = query.Where("eaten_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("eaten_at < ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, WrapDBError(err)
	}

	var records []*model.MealRecord
	err := query.
		Order("eaten_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, WrapDBError(err)
	}

	return records, total, nil
}

// UpdateRecognition 回填识别结果
func (r *mealRepositoryImpl) UpdateRecognition(ctx context.Context, id int64, foodsJSON string, calories int) error {
	err := r.db.WithContext(ctx).
		Model(&model.MealRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"foods_json": foodsJSON,
			"calories":   calories,
			"recognized": true,
		}).Error
	return WrapDBError(err)
}

// Delete 软删除饮食记录（仅限本人）
func (r *mealRepositoryImpl) Delete(ctx context.Context, id int64, userUUID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_uuid = ?", id, userUUID).
		Delete(&model.MealRecord{})
	if result.Error != nil {
		return WrapDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
