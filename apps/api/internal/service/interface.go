package service

import (
	"context"
	"io"

	"DietServer/apps/api/internal/dto"
)

// ==================== 认证服务接口 ====================

// IAuthService 认证服务接口
// 职责：注册、登录、验证码
type IAuthService interface {
	// SendVerifyCode 发送注册验证码
	SendVerifyCode(ctx context.Context, req *dto.SendVerifyCodeRequest) (*dto.SendVerifyCodeResponse, error)

	// Register 用户注册
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)

	// Login 用户登录（密码）
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
}

// ==================== 配对服务接口 ====================

// IPairingService 配对服务接口
// 职责：配对关系全生命周期（发起/接受/拒绝/取消/解除）与状态投影
type IPairingService interface {
	// SendRequest 向指定邮箱的用户发起配对请求
	SendRequest(ctx context.Context, userUUID string, req *dto.SendPairRequest) (*dto.SendPairResponse, error)

	// RespondRequest 接受或拒绝收到的配对请求
	RespondRequest(ctx context.Context, userUUID string, req *dto.RespondPairRequest) (*dto.PairStatusResponse, error)

	// CancelRequest 取消本人发起的配对请求
	CancelRequest(ctx context.Context, userUUID string, req *dto.CancelPairRequest) error

	// Disconnect 解除当前生效的配对关系
	Disconnect(ctx context.Context, userUUID string) error

	// GetStatus 获取本人当前配对状态投影
	GetStatus(ctx context.Context, userUUID string) (*dto.PairStatusResponse, error)
}

// ==================== 饮食服务接口 ====================

// IMealService 饮食记录服务接口
// 职责：拍照记录、食物识别、本人与情侣视角的记录查询
type IMealService interface {
	// CreateMeal 创建饮食记录（上传照片并尝试识别）
	CreateMeal(ctx context.Context, userUUID string, req *dto.CreateMealRequest, photo io.Reader, photoSize int64) (*dto.MealRecordItem, error)

	// ListMeals 查询饮食记录（scope=couple 时合并伴侣的记录）
	ListMeals(ctx context.Context, userUUID string, req *dto.ListMealsRequest) (*dto.ListMealsResponse, error)

	// RecognizeMeal 对已有记录重新触发食物识别
	RecognizeMeal(ctx context.Context, userUUID string, mealID int64) (*dto.MealRecordItem, error)

	// DeleteMeal 删除本人的饮食记录
	DeleteMeal(ctx context.Context, userUUID string, mealID int64) error
}
