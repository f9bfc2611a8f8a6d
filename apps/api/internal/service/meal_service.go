package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/utils"
	"DietServer/apps/api/internal/vision"
	"DietServer/consts"
	"DietServer/model"
	"DietServer/pkg/logger"
	"DietServer/pkg/minio"
	"DietServer/pkg/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// IPhotoStore 餐食照片存储接口（pkg/minio.Client 实现）
type IPhotoStore interface {
	UploadMealPhoto(ctx context.Context, reader io.Reader, fileSize int64) (*minio.UploadResult, error)
}

// 伴侣关系本地缓存参数
// 情侣视角列表是高频读，伴侣关系变化是低频事件，短 TTL 进程内缓存扛掉大部分查询
const (
	partnerCacheSize = 4096
	partnerCacheTTL  = time.Minute
)

// mealServiceImpl 饮食记录服务实现
type mealServiceImpl struct {
	mealRepo   repository.IMealRepository
	userRepo   repository.IUserRepository
	photoStore IPhotoStore
	recognizer vision.IRecognizer

	// userUUID -> partnerUUID（空串表示未配对）
	partnerCache *expirable.LRU[string, string]
}

// NewMealService 创建饮食记录服务实例
func NewMealService(
	mealRepo repository.IMealRepository,
	userRepo repository.IUserRepository,
	photoStore IPhotoStore,
	recognizer vision.IRecognizer,
) IMealService {
	return &mealServiceImpl{
		mealRepo:     mealRepo,
		userRepo:     userRepo,
		photoStore:   photoStore,
		recognizer:   recognizer,
		partnerCache: expirable.NewLRU[string, string](partnerCacheSize, nil, partnerCacheTTL),
	}
}

// CreateMeal 创建饮食记录
// 业务流程：
//  1. 上传餐食照片到对象存储
//  2. 落库记录（未识别状态）
//  3. 同步触发食物识别，失败不阻塞创建（客户端可重新识别）
//
// 错误码映射：
//   - CodeMealPhotoTooLarge: 照片超过大小限制
//   - CodeMealPhotoInvalid: 照片类型不合法
func (s *mealServiceImpl) CreateMeal(ctx context.Context, userUUID string, req *dto.CreateMealRequest, photo io.Reader, photoSize int64) (*dto.MealRecordItem, error) {
	// 1. 上传照片
	uploaded, err := s.photoStore.UploadMealPhoto(ctx, photo, photoSize)
	if err != nil {
		switch {
		case errors.Is(err, minio.ErrFileTooLarge):
			return nil, utils.NewBizError(consts.CodeMealPhotoTooLarge)
		case errors.Is(err, minio.ErrTypeNotAllowed):
			return nil, utils.NewBizError(consts.CodeMealPhotoInvalid)
		default:
			logger.Error(ctx, "餐食照片上传失败", logger.ErrorField("error", err))
			return nil, utils.NewBizError(consts.CodeInternalError)
		}
	}

	eatenAt := time.Now()
	if req.EatenAt > 0 {
		eatenAt = time.Unix(req.EatenAt, 0)
	}

	// 2. 落库
	record := &model.MealRecord{
		Id:       util.NextID(),
		UserUuid: userUUID,
		MealType: req.MealType,
		ImageURL: uploaded.URL,
		Note:     req.Note,
		EatenAt:  eatenAt,
	}
	if _, err := s.mealRepo.Create(ctx, record); err != nil {
		logger.Error(ctx, "创建饮食记录失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	// 3. 识别（失败留待重新识别）
	s.recognizeAndFill(ctx, record)

	return s.toMealItem(record), nil
}

// recognizeAndFill 触发食物识别并回填记录，失败只记日志
func (s *mealServiceImpl) recognizeAndFill(ctx context.Context, record *model.MealRecord) {
	result, err := s.recognizer.Recognize(ctx, record.ImageURL)
	if err != nil {
		logger.Warn(ctx, "食物识别失败，记录保持未识别状态",
			logger.Int64("meal_id", record.Id),
			logger.ErrorField("error", err),
		)
		return
	}

	foodsJSON, err := json.Marshal(result.Foods)
	if err != nil {
		logger.Error(ctx, "识别结果序列化失败", logger.ErrorField("error", err))
		return
	}

	if err := s.mealRepo.UpdateRecognition(ctx, record.Id, string(foodsJSON), result.TotalCalories); err != nil {
		logger.Error(ctx, "回填识别结果失败",
			logger.Int64("meal_id", record.Id),
			logger.ErrorField("error", err),
		)
		return
	}

	record.FoodsJSON = string(foodsJSON)
	record.Calories = result.TotalCalories
	record.Recognized = true
}

// ListMeals 查询饮食记录
// scope=couple 时合并伴侣的记录；未配对则退化为仅本人
func (s *mealServiceImpl) ListMeals(ctx context.Context, userUUID string, req *dto.ListMealsRequest) (*dto.ListMealsResponse, error) {
	userUUIDs := []string{userUUID}
	if req.Scope == "couple" {
		partnerUUID, err := s.getPartnerUUID(ctx, userUUID)
		if err != nil {
			return nil, err
		}
		if partnerUUID != "" {
			userUUIDs = append(userUUIDs, partnerUUID)
		}
	}

	var from, to time.Time
	if req.From > 0 {
		from = time.Unix(req.From, 0)
	}
	if req.To > 0 {
		to = time.Unix(req.To, 0)
	}

	records, total, err := s.mealRepo.ListByUsers(ctx, userUUIDs, from, to, req.Page, req.PageSize)
	if err != nil {
		logger.Error(ctx, "查询饮食记录失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	list := make([]*dto.MealRecordItem, 0, len(records))
	for _, record := range records {
		list = append(list, s.toMealItem(record))
	}
	return &dto.ListMealsResponse{List: list, Total: total}, nil
}

// getPartnerUUID 查询当前伴侣 uuid（带进程内 LRU 缓存）
// 返回空串表示未配对；解除配对后最多 partnerCacheTTL 内可能读到旧伴侣
func (s *mealServiceImpl) getPartnerUUID(ctx context.Context, userUUID string) (string, error) {
	if partnerUUID, ok := s.partnerCache.Get(userUUID); ok {
		return partnerUUID, nil
	}

	user, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询用户失败", logger.ErrorField("error", err))
		return "", utils.NewBizError(consts.CodeInternalError)
	}
	if user == nil {
		return "", utils.NewBizError(consts.CodeUserNotFound)
	}

	partnerUUID := ""
	if user.PartnerUuid != nil {
		partnerUUID = *user.PartnerUuid
	}
	s.partnerCache.Add(userUUID, partnerUUID)
	return partnerUUID, nil
}

// RecognizeMeal 对已有记录重新触发食物识别
// 错误码映射：
//   - CodeMealNotFound: 记录不存在
//   - CodePermissionDeny: 非本人记录
//   - CodeRecognizeFailed: 识别服务不可用或识别失败
func (s *mealServiceImpl) RecognizeMeal(ctx context.Context, userUUID string, mealID int64) (*dto.MealRecordItem, error) {
	record, err := s.mealRepo.GetByID(ctx, mealID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, utils.NewBizError(consts.CodeMealNotFound)
		}
		logger.Error(ctx, "查询饮食记录失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if record.UserUuid != userUUID {
		return nil, utils.NewBizError(consts.CodePermissionDeny)
	}

	result, err := s.recognizer.Recognize(ctx, record.ImageURL)
	if err != nil {
		return nil, utils.NewBizError(consts.CodeRecognizeFailed)
	}

	foodsJSON, err := json.Marshal(result.Foods)
	if err != nil {
		logger.Error(ctx, "识别结果序列化失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if err := s.mealRepo.UpdateRecognition(ctx, record.Id, string(foodsJSON), result.TotalCalories); err != nil {
		logger.Error(ctx, "回填识别结果失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	record.FoodsJSON = string(foodsJSON)
	record.Calories = result.TotalCalories
	record.Recognized = true
	return s.toMealItem(record), nil
}

// DeleteMeal 删除本人的饮食记录
func (s *mealServiceImpl) DeleteMeal(ctx context.Context, userUUID string, mealID int64) error {
	if err := s.mealRepo.Delete(ctx, mealID, userUUID); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return utils.NewBizError(consts.CodeMealNotFound)
		}
		logger.Error(ctx, "删除饮食记录失败", logger.ErrorField("error", err))
		return utils.NewBizError(consts.CodeInternalError)
	}
	return nil
}

// toMealItem 模型转 DTO
func (s *mealServiceImpl) toMealItem(record *model.MealRecord) *dto.MealRecordItem {
	item := &dto.MealRecordItem{
		ID:         record.Id,
		UserUUID:   record.UserUuid,
		MealType:   record.MealType,
		ImageURL:   record.ImageURL,
		Note:       record.Note,
		Calories:   record.Calories,
		Recognized: record.Recognized,
		EatenAt:    record.EatenAt.Unix(),
	}
	if record.FoodsJSON != "" {
		var foods []dto.FoodItem
		if err := json.Unmarshal([]byte(record.FoodsJSON), &foods); err == nil {
			item.Foods = foods
		}
	}
	return item
}
