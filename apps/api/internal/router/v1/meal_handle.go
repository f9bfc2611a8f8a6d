package v1

import (
	"strconv"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/middleware"
	"DietServer/apps/api/internal/service"
	"DietServer/apps/api/internal/utils"
	"DietServer/consts"
	"DietServer/pkg/logger"
	"DietServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// MealHandler 饮食记录相关的 HTTP 处理器
type MealHandler struct {
	mealService service.IMealService
}

// NewMealHandler 创建饮食记录处理器
func NewMealHandler(mealService service.IMealService) *MealHandler {
	return &MealHandler{
		mealService: mealService,
	}
}

// Create 创建饮食记录
// @Summary 创建饮食记录
// @Description 上传一张饮食照片并创建记录，服务端异步尝试识别照片中的食物
// @Tags 饮食
// @Accept multipart/form-data
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param photo formData file true "饮食照片"
// @Param mealType formData string true "餐别 breakfast/lunch/dinner/snack"
// @Param note formData string false "备注"
// @Param eatenAt formData int false "用餐时间(unix秒)"
// @Success 200 {object} result.Response{data=dto.MealRecordItem}
// @Router /api/v1/meal [post]
func (h *MealHandler) Create(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.CreateMealRequest
	if err := c.ShouldBind(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		result.Fail(c, nil, consts.CodeMealPhotoInvalid)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error(ctx, "打开上传文件失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.String("filename", fileHeader.Filename),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}
	defer file.Close()

	resp, err := h.mealService.CreateMeal(ctx, userUUID, &req, file, fileHeader.Size)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "创建饮食记录失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.String("meal_type", req.MealType),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// List 查询饮食记录
// @Summary 查询饮食记录
// @Description 分页查询饮食记录，scope=couple 时合并伴侣的记录
// @Tags 饮食
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param scope query string false "查询范围 self/couple，缺省 self"
// @Param from query int false "起始时间(unix秒)"
// @Param to query int false "截止时间(unix秒)"
// @Param page query int false "页码，缺省 1"
// @Param pageSize query int false "每页条数，缺省 20"
// @Success 200 {object} result.Response{data=dto.ListMealsResponse}
// @Router /api/v1/meal/list [get]
func (h *MealHandler) List(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.ListMealsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.mealService.ListMeals(ctx, userUUID, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "查询饮食记录失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.String("scope", req.Scope),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Recognize 重新识别饮食记录
// @Summary 重新识别饮食记录
// @Description 对已有记录重新触发食物识别（首次识别失败后可重试）
// @Tags 饮食
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body dto.RecognizeMealRequest true "重新识别请求"
// @Success 200 {object} result.Response{data=dto.MealRecordItem}
// @Router /api/v1/meal/recognize [post]
func (h *MealHandler) Recognize(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.RecognizeMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.mealService.RecognizeMeal(ctx, userUUID, req.MealID)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "重新识别饮食记录失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.Int64("meal_id", req.MealID),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Delete 删除饮食记录
// @Summary 删除饮食记录
// @Description 删除本人的一条饮食记录
// @Tags 饮食
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path int true "记录ID"
// @Success 200 {object} result.Response
// @Router /api/v1/meal/{id} [delete]
func (h *MealHandler) Delete(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	mealID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || mealID <= 0 {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	if err := h.mealService.DeleteMeal(ctx, userUUID, mealID); err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "删除饮食记录失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.Int64("meal_id", mealID),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, nil)
}
