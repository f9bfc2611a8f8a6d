package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	rediskey "DietServer/consts/redisKey"
	"DietServer/model"
	"DietServer/pkg/async"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// userRepositoryImpl 用户信息数据访问层实现
type userRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewUserRepository 创建用户信息仓储实例
func NewUserRepository(db *gorm.DB, redisClient *redis.Client) IUserRepository {
	return &userRepositoryImpl{db: db, redisClient: redisClient}
}

// GetByUUID 根据UUID查询用户信息
func (r *userRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error) {
	// ==================== 1. 先从 Redis 缓存中查询 ====================
	cacheKey := rediskey.UserInfoKey(uuid)
	if r.redisClient != nil {
		cachedData, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			// 缓存命中，反序列化返回
			// 先判空
			if cachedData == "{}" {
				return nil, nil
			}
			var user model.UserInfo
			if err := json.Unmarshal([]byte(cachedData), &user); err == nil {
				return &user, nil
			}
		}
		if err != nil && err != redis.Nil {
			LogRedisError(ctx, err) // 记录日志 降级处理
		}
	}

	// ==================== 2. 缓存未命中，查询 MySQL ====================
	var user model.UserInfo
	err := r.db.WithContext(ctx).Where("uuid = ? AND deleted_at IS NULL", uuid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if r.redisClient != nil {
				// 存一份空到redis 5min过期
				randomDuration := getRandomExpireTime(rediskey.UserInfoEmptyTTL)
				async.RunSafe(ctx, func(runCtx context.Context) {
					if err := r.redisClient.Set(runCtx, cacheKey, "{}", randomDuration).Err(); err != nil {
						LogRedisError(runCtx, err)
					}
				}, 0)
			}
			return nil, nil
		}
		return nil, WrapDBError(err)
	}

	// ==================== 3. 存入 Redis 缓存 ====================
	if r.redisClient == nil {
		return &user, nil
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		// 序列化失败，不影响主流程，只返回数据库数据
		return &user, nil
	}

	// 随机时间防止缓存雪崩
	ttl := rediskey.UserInfoTTL - time.Duration(rand.Intn(10))*time.Minute
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := r.redisClient.Set(runCtx, cacheKey, userJSON, ttl).Err(); err != nil {
			LogRedisError(runCtx, err)
		}
	}, 0)

	return &user, nil
}

// GetByEmail 根据邮箱查询用户信息
// 按邮箱查找只发生在发起配对时，频率低，不走缓存
func (r *userRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	var user model.UserInfo
	err := r.db.WithContext(ctx).Where("email = ? AND deleted_at IS NULL", email).First(&user).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

// UpdateProfile 更新昵称与头像
func (r *userRepositoryImpl) UpdateProfile(ctx context.Context, userUUID, nickname, avatar string) error {
	updates := map[string]interface{}{}
	if nickname != "" {
		updates["nickname"] = nickname
	}
	if avatar != "" {
		updates["avatar"] = avatar
	}
	if len(updates) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("uuid = ?", userUUID).
		Updates(updates).Error
	if err != nil {
		return WrapDBError(err)
	}

	// 删除用户信息缓存，下次读取时回源重建
	if r.redisClient != nil {
		if err := r.redisClient.Del(ctx, rediskey.UserInfoKey(userUUID)).Err(); err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
		}
	}
	return nil
}
