package model

import (
	"time"

	"gorm.io/gorm"
)

// 餐别
const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

// MealRecord 饮食记录。
// FoodsJSON 为识别结果（食物名+热量明细）的 JSON；识别失败时为空且 Recognized=false，
// 记录仍保存，客户端可触发重新识别。
type MealRecord struct {
	Id         int64          `gorm:"column:id;primaryKey;comment:雪花id"`
	UserUuid   string         `gorm:"column:user_uuid;type:char(36);not null;index:idx_user_eaten;comment:记录人uuid"`
	MealType   string         `gorm:"column:meal_type;type:varchar(16);not null;comment:餐别"`
	ImageURL   string         `gorm:"column:image_url;type:varchar(256);comment:餐食照片URL"`
	Note       string         `gorm:"column:note;type:varchar(256);comment:备注"`
	FoodsJSON  string         `gorm:"column:foods_json;type:text;comment:识别结果JSON"`
	Calories   int            `gorm:"column:calories;not null;default:0;comment:总热量(kcal)"`
	Recognized bool           `gorm:"column:recognized;not null;default:0;comment:是否已识别"`
	EatenAt    time.Time      `gorm:"column:eaten_at;not null;index:idx_user_eaten;comment:用餐时间"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (MealRecord) TableName() string { return "meal_record" }
