package v1

import (
	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/middleware"
	"DietServer/apps/api/internal/service"
	"DietServer/apps/api/internal/utils"
	"DietServer/consts"
	"DietServer/pkg/logger"
	"DietServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// PairHandler 配对相关的 HTTP 处理器
type PairHandler struct {
	pairingService service.IPairingService
}

// NewPairHandler 创建配对处理器
func NewPairHandler(pairingService service.IPairingService) *PairHandler {
	return &PairHandler{
		pairingService: pairingService,
	}
}

// SendRequest 发起配对请求
// @Summary 发起配对请求
// @Description 向指定邮箱的用户发起配对请求，双方都必须处于未配对状态
// @Tags 配对
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body dto.SendPairRequest true "发起配对请求"
// @Success 200 {object} result.Response{data=dto.SendPairResponse}
// @Router /api/v1/pair/request [post]
func (h *PairHandler) SendRequest(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.SendPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.pairingService.SendRequest(ctx, userUUID, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "发起配对请求失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.String("partner_email", utils.MaskEmail(req.PartnerEmail)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Respond 响应配对请求
// @Summary 响应配对请求
// @Description 接受或拒绝收到的配对请求，接受后双方建立配对关系
// @Tags 配对
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body dto.RespondPairRequest true "响应配对请求"
// @Success 200 {object} result.Response{data=dto.PairStatusResponse}
// @Router /api/v1/pair/respond [post]
func (h *PairHandler) Respond(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.RespondPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.pairingService.RespondRequest(ctx, userUUID, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "响应配对请求失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.Int64("relation_id", req.RelationID),
			logger.String("action", req.Action),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Cancel 取消配对请求
// @Summary 取消配对请求
// @Description 取消本人发起的待处理配对请求
// @Tags 配对
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body dto.CancelPairRequest true "取消配对请求"
// @Success 200 {object} result.Response
// @Router /api/v1/pair/cancel [post]
func (h *PairHandler) Cancel(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.CancelPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	if err := h.pairingService.CancelRequest(ctx, userUUID, &req); err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "取消配对请求失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.Int64("relation_id", req.RelationID),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, nil)
}

// Disconnect 解除配对
// @Summary 解除配对
// @Description 解除当前生效的配对关系，双方回到未配对状态
// @Tags 配对
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} result.Response
// @Router /api/v1/pair/disconnect [post]
func (h *PairHandler) Disconnect(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	if err := h.pairingService.Disconnect(ctx, userUUID); err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "解除配对失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, nil)
}

// GetStatus 获取配对状态
// @Summary 获取配对状态
// @Description 获取本人当前的配对状态投影（none/pending_sent/pending_received/active）
// @Tags 配对
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} result.Response{data=dto.PairStatusResponse}
// @Router /api/v1/pair/status [get]
func (h *PairHandler) GetStatus(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userUUID, exists := middleware.GetUserUUID(c)
	if !exists {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	resp, err := h.pairingService.GetStatus(ctx, userUUID)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "获取配对状态失败",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}
