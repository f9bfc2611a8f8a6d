package model

import (
	"time"

	"gorm.io/gorm"
)

// UserInfo 用户账号。
// PartnerUuid 为当前生效伴侣的 uuid，未配对时为 NULL；
// 约束：PartnerUuid 非空 当且仅当 存在唯一一条 status=active 的 CoupleRelation 包含该用户，
// 且对方的 PartnerUuid 指回本用户（双向对称，由配对服务的事务保证）。
type UserInfo struct {
	Id          int64          `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	Uuid        string         `gorm:"column:uuid;type:char(36);not null;uniqueIndex;comment:用户uuid"`
	Email       string         `gorm:"column:email;type:varchar(128);not null;uniqueIndex;comment:邮箱，用于伴侣查找"`
	Password    string         `gorm:"column:password;type:varchar(128);not null;comment:bcrypt哈希"`
	Nickname    string         `gorm:"column:nickname;type:varchar(64);comment:昵称"`
	Avatar      string         `gorm:"column:avatar;type:varchar(256);comment:头像URL"`
	PartnerUuid *string        `gorm:"column:partner_uuid;type:char(36);index;comment:当前伴侣uuid，未配对为NULL"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (UserInfo) TableName() string { return "user_info" }
