package dto

// ==================== 饮食记录相关 DTO ====================

// CreateMealRequest 创建饮食记录请求 DTO
// 照片通过 multipart form 的 photo 字段携带，其余字段走 form 值
type CreateMealRequest struct {
	MealType string `form:"mealType" binding:"required,oneof=breakfast lunch dinner snack"` // 餐别
	Note     string `form:"note" binding:"omitempty,max=200"`                               // 备注
	EatenAt  int64  `form:"eatenAt" binding:"omitempty,gt=0"`                               // 用餐时间(unix秒)，缺省取当前时间
}

// FoodItem 识别出的单种食物
type FoodItem struct {
	Name     string `json:"name"`     // 食物名
	Calories int    `json:"calories"` // 热量(kcal)
	Weight   int    `json:"weight"`   // 估算重量(g)
}

// MealRecordItem 饮食记录 DTO
type MealRecordItem struct {
	ID         int64      `json:"id"`         // 记录ID
	UserUUID   string     `json:"userUuid"`   // 记录人UUID
	MealType   string     `json:"mealType"`   // 餐别
	ImageURL   string     `json:"imageUrl"`   // 照片URL
	Note       string     `json:"note"`       // 备注
	Foods      []FoodItem `json:"foods"`      // 识别结果
	Calories   int        `json:"calories"`   // 总热量(kcal)
	Recognized bool       `json:"recognized"` // 是否已识别
	EatenAt    int64      `json:"eatenAt"`    // 用餐时间(unix秒)
}

// ListMealsRequest 查询饮食记录请求 DTO
// Scope=couple 时合并返回伴侣的记录（未配对则退化为仅本人）
type ListMealsRequest struct {
	Scope    string `form:"scope" binding:"omitempty,oneof=self couple"` // 查询范围，缺省 self
	From     int64  `form:"from" binding:"omitempty,gt=0"`               // 起始时间(unix秒)
	To       int64  `form:"to" binding:"omitempty,gt=0"`                 // 截止时间(unix秒)
	Page     int    `form:"page" binding:"omitempty,gt=0"`               // 页码，缺省 1
	PageSize int    `form:"pageSize" binding:"omitempty,gt=0,lte=100"`   // 每页条数，缺省 20
}

// ListMealsResponse 查询饮食记录响应 DTO
type ListMealsResponse struct {
	List  []*MealRecordItem `json:"list"`  // 记录列表
	Total int64             `json:"total"` // 总条数
}

// RecognizeMealRequest 重新识别请求 DTO
type RecognizeMealRequest struct {
	MealID int64 `json:"mealId" binding:"required,gt=0"` // 记录ID
}
