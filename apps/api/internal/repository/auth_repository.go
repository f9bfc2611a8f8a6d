package repository

import (
	"context"
	"time"

	rediskey "DietServer/consts/redisKey"
	"DietServer/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 验证码发送限流阈值
const (
	verifyCodePerMinuteLimit = 1  // 每分钟最多发送次数
	verifyCodePer24HLimit    = 10 // 每24小时最多发送次数
)

// authRepositoryImpl 认证相关数据访问层实现
type authRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewAuthRepository 创建认证仓储实例
func NewAuthRepository(db *gorm.DB, redisClient *redis.Client) IAuthRepository {
	return &authRepositoryImpl{db: db, redisClient: redisClient}
}

// GetByEmail 根据邮箱查询用户信息
func (r *authRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

// ExistsByEmail 检查邮箱是否已存在
func (r *authRepositoryImpl) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("email = ?", email).
		Count(&count).Error
	if err != nil {
		return false, WrapDBError(err)
	}
	return count > 0, nil
}

// Create 创建新用户
// 邮箱唯一索引冲突返回 ErrDuplicateKey（并发注册场景）
func (r *authRepositoryImpl) Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return user, nil
}

// StoreVerifyCode 存储注册验证码到Redis（带过期时间）
// 验证码依赖 Redis，MySQL-Only 降级模式下注册流程不可用
func (r *authRepositoryImpl) StoreVerifyCode(ctx context.Context, email, verifyCode string, expireDuration time.Duration) error {
	if r.redisClient == nil {
		return ErrRedis
	}
	key := rediskey.VerifyCodeKey(email)
	if err := r.redisClient.Set(ctx, key, verifyCode, expireDuration).Err(); err != nil {
		return WrapRedisError(err)
	}
	return nil
}

// ConsumeVerifyCode 校验并消耗验证码
// Lua 脚本原子执行「校验+删除」，同一验证码并发提交只有一个会成功
func (r *authRepositoryImpl) ConsumeVerifyCode(ctx context.Context, email, verifyCode string) (bool, error) {
	if r.redisClient == nil {
		return false, ErrRedis
	}
	script := redis.NewScript(luaCompareAndDelete)
	result, err := script.Run(ctx, r.redisClient,
		[]string{rediskey.VerifyCodeKey(email)},
		verifyCode,
	).Int()
	if err != nil && err != redis.Nil {
		return false, WrapRedisError(err)
	}
	return result == 1, nil
}

// VerifyCodeRateLimited 验证码发送限流校验
// 两级计数器：1分钟窗口 + 24小时窗口，任一超限即触发限流
// 计数在校验通过时顺手递增（INCR 首次创建时设置过期）
func (r *authRepositoryImpl) VerifyCodeRateLimited(ctx context.Context, email string) (bool, error) {
	if r.redisClient == nil {
		return false, nil
	}
	script := redis.NewScript(luaIncrementWithExpire)

	minuteCount, err := script.Run(ctx, r.redisClient,
		[]string{rediskey.VerifyCodeMinuteKey(email)},
		int(rediskey.VerifyCodeMinuteTTL.Seconds()),
	).Int64()
	if err != nil {
		return false, WrapRedisError(err)
	}
	if minuteCount > verifyCodePerMinuteLimit {
		return true, nil
	}

	dayCount, err := script.Run(ctx, r.redisClient,
		[]string{rediskey.VerifyCode24HKey(email)},
		int(rediskey.VerifyCode24HTTL.Seconds()),
	).Int64()
	if err != nil {
		return false, WrapRedisError(err)
	}
	return dayCount > verifyCodePer24HLimit, nil
}
