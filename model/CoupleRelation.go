package model

import "time"

// 配对关系状态。终态（inactive/cancelled）保留作历史，重新配对创建新行。
const (
	RelationStatusPending   int8 = 0 // 待确认
	RelationStatusActive    int8 = 1 // 生效中
	RelationStatusInactive  int8 = 2 // 已失效（拒绝或解除）
	RelationStatusCancelled int8 = 3 // 发起方已取消
)

// CoupleRelation 配对关系。
// User1Uuid/User2Uuid 是无序对，序号不承载语义；RequesterUuid 必为其中之一，创建后不变。
// ExclusiveKey 为归一化的 "小uuid:大uuid"，仅在 pending/active 期间持有（终态置 NULL）；
// 其唯一索引保证同一对用户同时最多一条 pending/active 关系（MySQL 唯一索引忽略 NULL）。
type CoupleRelation struct {
	Id            int64      `gorm:"column:id;primaryKey;comment:雪花id"`
	User1Uuid     string     `gorm:"column:user1_uuid;type:char(36);not null;index;comment:成员1"`
	User2Uuid     string     `gorm:"column:user2_uuid;type:char(36);not null;index;comment:成员2"`
	RequesterUuid string     `gorm:"column:requester_uuid;type:char(36);not null;comment:发起方uuid"`
	Status        int8       `gorm:"column:status;not null;default:0;comment:状态 0.pending 1.active 2.inactive 3.cancelled"`
	ExclusiveKey  *string    `gorm:"column:exclusive_key;type:char(73);uniqueIndex;comment:互斥键，pending/active 期间持有"`
	RequestedAt   time.Time  `gorm:"column:requested_at;not null;comment:发起时间"`
	AcceptedAt    *time.Time `gorm:"column:accepted_at;comment:接受时间"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CoupleRelation) TableName() string { return "couple_relation" }

// OtherParty 返回已知一方之外的另一方 uuid；known 不属于该关系时返回空串。
// 统一出口，避免读路径到处写 user1/user2 两种排列的分支。
func (r *CoupleRelation) OtherParty(known string) string {
	switch known {
	case r.User1Uuid:
		return r.User2Uuid
	case r.User2Uuid:
		return r.User1Uuid
	default:
		return ""
	}
}

// HasParty 判断 uuid 是否为该关系的成员。
func (r *CoupleRelation) HasParty(uuid string) bool {
	return uuid == r.User1Uuid || uuid == r.User2Uuid
}

// IsTerminal 判断是否处于终态。
func (r *CoupleRelation) IsTerminal() bool {
	return r.Status == RelationStatusInactive || r.Status == RelationStatusCancelled
}

// PairKey 归一化无序对（字典序小者在前），作为互斥键与查询键。
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
