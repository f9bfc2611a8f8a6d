package repository

import (
	"context"
	"time"

	"DietServer/model"
)

// ==================== 认证相关 Repository ====================

// IAuthRepository 认证相关数据访问接口
type IAuthRepository interface {
	// GetByEmail 根据邮箱查询用户信息
	GetByEmail(ctx context.Context, email string) (*model.UserInfo, error)

	// ExistsByEmail 检查邮箱是否已存在
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create 创建新用户
	Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error)

	// StoreVerifyCode 存储注册验证码到Redis（带过期时间）
	StoreVerifyCode(ctx context.Context, email, verifyCode string, expireDuration time.Duration) error

	// ConsumeVerifyCode 校验并消耗验证码（原子操作，防止并发重放）
	// 返回 true 表示验证码匹配且已删除
	ConsumeVerifyCode(ctx context.Context, email, verifyCode string) (bool, error)

	// VerifyCodeRateLimited 验证码发送限流校验
	// 返回值: true=触发限流(不允许发送), false=未触发限流(允许发送)
	VerifyCodeRateLimited(ctx context.Context, email string) (bool, error)
}

// ==================== 用户信息 Repository ====================

// IUserRepository 用户信息数据访问接口
type IUserRepository interface {
	// GetByUUID 根据UUID查询用户信息（Cache-Aside）
	// 用户不存在时返回 (nil, nil)，空值占位防止缓存穿透
	GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error)

	// GetByEmail 根据邮箱查询用户信息（配对时按邮箱定位对方）
	// 用户不存在时返回 ErrRecordNotFound
	GetByEmail(ctx context.Context, email string) (*model.UserInfo, error)

	// UpdateProfile 更新昵称与头像
	UpdateProfile(ctx context.Context, userUUID, nickname, avatar string) error
}

// ==================== 配对关系 Repository ====================

// IPairRepository 配对关系数据访问接口
type IPairRepository interface {
	// GetRelationByID 根据ID获取配对关系
	GetRelationByID(ctx context.Context, id int64) (*model.CoupleRelation, error)

	// GetLiveRelationByPairKey 按互斥键查询 pending/active 的配对关系
	// 不存在时返回 ErrRecordNotFound
	GetLiveRelationByPairKey(ctx context.Context, pairKey string) (*model.CoupleRelation, error)

	// ListPendingByUser 查询某用户参与的全部 pending 关系（发起与收到的都算）
	// 按 requested_at 倒序
	ListPendingByUser(ctx context.Context, userUUID string) ([]*model.CoupleRelation, error)

	// CreateRelation 创建配对关系（pending），互斥键冲突返回 ErrDuplicateKey
	CreateRelation(ctx context.Context, rel *model.CoupleRelation) error

	// TransitionStatus CAS 状态迁移：WHERE id=? AND status=expected
	// next 为终态时同时清空互斥键；目标行不在期望状态返回 ErrStatusConflict
	TransitionStatus(ctx context.Context, id int64, expected, next int8) error

	// AcceptAndLink 接受配对并绑定双方伴侣引用（事务）
	// 事务内: CAS pending->active + 双方 partner_uuid IS NULL 守门更新
	// 任一守门失败回滚: 状态不符返回 ErrStatusConflict，伴侣位被占返回 ErrPartnerOccupied
	AcceptAndLink(ctx context.Context, relationID int64, userA, userB string) error

	// ClearPartnerRef 清除伴侣引用: WHERE uuid=? AND partner_uuid=?
	// 已清除（RowsAffected=0）视为幂等成功
	ClearPartnerRef(ctx context.Context, userUUID, expectedPartner string) error

	// GetStatusCache 读配对状态缓存（原始 JSON），未命中返回 ErrRedisNil
	GetStatusCache(ctx context.Context, userUUID string) (string, error)

	// SetStatusCache 写配对状态缓存（带抖动 TTL，尽力而为）
	SetStatusCache(ctx context.Context, userUUID, payload string)

	// InvalidateStatusCache 删除配对状态缓存，失败投递重试队列
	InvalidateStatusCache(ctx context.Context, userUUIDs ...string)
}

// ==================== 饮食记录 Repository ====================

// IMealRepository 饮食记录数据访问接口
type IMealRepository interface {
	// Create 创建饮食记录
	Create(ctx context.Context, record *model.MealRecord) (*model.MealRecord, error)

	// GetByID 根据ID获取饮食记录
	GetByID(ctx context.Context, id int64) (*model.MealRecord, error)

	// ListByUsers 查询一组用户在时间区间内的饮食记录（按用餐时间倒序分页）
	// 情侣视角传双方 uuid，本人视角传单个
	ListByUsers(ctx context.Context, userUUIDs []string, from, to time.Time, page, pageSize int) ([]*model.MealRecord, int64, error)

	// UpdateRecognition 回填识别结果
	UpdateRecognition(ctx context.Context, id int64, foodsJSON string, calories int) error

	// Delete 软删除饮食记录（仅限本人）
	Delete(ctx context.Context, id int64, userUUID string) error
}
