package repository

import (
	"context"
	"time"

	"DietServer/apps/api/internal/mq"
	rediskey "DietServer/consts/redisKey"
	"DietServer/model"
	"DietServer/pkg/async"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// pairRepositoryImpl 配对关系数据访问层实现
type pairRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewPairRepository 创建配对关系仓储实例
func NewPairRepository(db *gorm.DB, redisClient *redis.Client) IPairRepository {
	return &pairRepositoryImpl{db: db, redisClient: redisClient}
}

// GetRelationByID 根据ID获取配对关系
func (r *pairRepositoryImpl) GetRelationByID(ctx context.Context, id int64) (*model.CoupleRelation, error) {
	var rel model.CoupleRelation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rel).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &rel, nil
}

// GetLiveRelationByPairKey 按互斥键查询 pending/active 的配对关系
// exclusive_key 仅在 pending/active 期间持有，命中即是存活关系
func (r *pairRepositoryImpl) GetLiveRelationByPairKey(ctx context.Context, pairKey string) (*model.CoupleRelation, error) {
	var rel model.CoupleRelation
	err := r.db.WithContext(ctx).
		Where("exclusive_key = ?", pairKey).
		First(&rel).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &rel, nil
}

// ListPendingByUser 查询某用户参与的全部 pending 关系
func (r *pairRepositoryImpl) ListPendingByUser(ctx context.Context, userUUID string) ([]*model.CoupleRelation, error) {
	var rels []*model.CoupleRelation
	err := r.db.WithContext(ctx).
		Where("status = ? AND (user1_uuid = ? OR user2_uuid = ?)",
			model.RelationStatusPending, userUUID, userUUID).
		Order("requested_at DESC, id DESC").
		Find(&rels).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return rels, nil
}

// CreateRelation 创建配对关系（pending）
// 互斥键唯一索引是并发防线：同一对用户并发发起时只有一条能落库
func (r *pairRepositoryImpl) CreateRelation(ctx context.Context, rel *model.CoupleRelation) error {
	if err := r.db.WithContext(ctx).Create(rel).Error; err != nil {
		return WrapDBError(err)
	}

	r.InvalidateStatusCache(ctx, rel.User1Uuid, rel.User2Uuid)
	return nil
}

// TransitionStatus CAS 状态迁移
// WHERE id=? AND status=expected 作为守门员；next 为终态时同一条 UPDATE 释放互斥键，
// 保证「终态」与「互斥键释放」原子生效，释放后同一对用户立刻可以重新发起
func (r *pairRepositoryImpl) TransitionStatus(ctx context.Context, id int64, expected, next int8) error {
	updates := map[string]interface{}{
		"status": next,
	}
	terminal := next == model.RelationStatusInactive || next == model.RelationStatusCancelled
	if terminal {
		updates["exclusive_key"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&model.CoupleRelation{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)

	if result.Error != nil {
		return WrapDBError(result.Error)
	}

	// 没有更新任何行，说明状态已被并发操作改走
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// AcceptAndLink 接受配对并绑定双方伴侣引用（事务 + CAS）
// 在同一事务中执行:
//  1. CAS pending->active（WHERE status=pending 守门员），同时记录 accepted_at
//  2. 绑定双方 partner_uuid（WHERE partner_uuid IS NULL 守门员），任一失败整体回滚
//
// 两道守门共同保证：并发接受/并发配对下最多一条关系能完成绑定
func (r *pairRepositoryImpl) AcceptAndLink(ctx context.Context, relationID int64, userA, userB string) error {
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. CAS 激活关系
		result := tx.Model(&model.CoupleRelation{}).
			Where("id = ? AND status = ?", relationID, model.RelationStatusPending).
			Updates(map[string]interface{}{
				"status":      model.RelationStatusActive,
				"accepted_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusConflict
		}

		// 2. 绑定双方伴侣引用
		for _, pair := range []struct{ owner, partner string }{
			{userA, userB},
			{userB, userA},
		} {
			result := tx.Model(&model.UserInfo{}).
				Where("uuid = ? AND partner_uuid IS NULL", pair.owner).
				Update("partner_uuid", pair.partner)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				// 该用户的伴侣位已被其他关系占用，回滚整个接受操作
				return ErrPartnerOccupied
			}
		}
		return nil
	})

	if err != nil {
		if err == ErrStatusConflict || err == ErrPartnerOccupied {
			return err
		}
		return WrapDBError(err)
	}

	// 3. 事务成功后异步失效双方缓存
	r.invalidateCachesAsync(ctx, userA, userB)
	return nil
}

// ClearPartnerRef 清除伴侣引用
// WHERE partner_uuid=? 防止误清新关系的引用；RowsAffected=0 视为已清除（幂等）
func (r *pairRepositoryImpl) ClearPartnerRef(ctx context.Context, userUUID, expectedPartner string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("uuid = ? AND partner_uuid = ?", userUUID, expectedPartner).
		Update("partner_uuid", nil)
	if result.Error != nil {
		return WrapDBError(result.Error)
	}

	r.invalidateCachesAsync(ctx, userUUID)
	return nil
}

// GetStatusCache 读配对状态缓存
func (r *pairRepositoryImpl) GetStatusCache(ctx context.Context, userUUID string) (string, error) {
	if r.redisClient == nil {
		return "", ErrRedisNil
	}
	val, err := r.redisClient.Get(ctx, rediskey.PairStatusKey(userUUID)).Result()
	if err != nil {
		if isRedisWrongType(err) {
			_ = r.redisClient.Del(ctx, rediskey.PairStatusKey(userUUID)).Err()
			return "", ErrRedisNil
		}
		return "", WrapRedisError(err)
	}
	return val, nil
}

// SetStatusCache 写配对状态缓存（尽力而为，失败只记日志）
func (r *pairRepositoryImpl) SetStatusCache(ctx context.Context, userUUID, payload string) {
	if r.redisClient == nil {
		return
	}
	ttl := getRandomExpireTime(rediskey.PairStatusTTL)
	async.RunSafe(ctx, func(runCtx context.Context) {
		key := rediskey.PairStatusKey(userUUID)
		if err := r.redisClient.Set(runCtx, key, payload, ttl).Err(); err != nil {
			LogRedisError(runCtx, err)
		}
	}, 0)
}

// InvalidateStatusCache 删除配对状态缓存
// 状态缓存必须删成功，否则读到的配对状态会长时间滞后；
// 删除失败投递 Kafka 重试队列补偿
func (r *pairRepositoryImpl) InvalidateStatusCache(ctx context.Context, userUUIDs ...string) {
	if r.redisClient == nil || len(userUUIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userUUIDs))
	for _, u := range userUUIDs {
		keys = append(keys, rediskey.PairStatusKey(u))
	}

	if err := r.redisClient.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		LogAndRetryRedisError(ctx, mq.BuildDelTask(keys...).WithSource("pair_repository"), err)
	}
}

// invalidateCachesAsync 异步失效配对状态缓存与用户信息缓存
// partner_uuid 挂在 UserInfo 上，配对变更后两类缓存都要失效
func (r *pairRepositoryImpl) invalidateCachesAsync(ctx context.Context, userUUIDs ...string) {
	if r.redisClient == nil {
		return
	}
	async.RunSafe(ctx, func(runCtx context.Context) {
		keys := make([]string, 0, len(userUUIDs)*2)
		for _, u := range userUUIDs {
			keys = append(keys, rediskey.PairStatusKey(u), rediskey.UserInfoKey(u))
		}
		if err := r.redisClient.Del(runCtx, keys...).Err(); err != nil && err != redis.Nil {
			LogAndRetryRedisError(runCtx, mq.BuildDelTask(keys...).WithSource("pair_repository"), err)
		}
	}, 0)
}
