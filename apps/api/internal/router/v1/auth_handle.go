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

// AuthHandler 认证相关的 HTTP 处理器
type AuthHandler struct {
	authService service.IAuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService service.IAuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// SendVerifyCode 发送注册验证码
// @Summary 发送注册验证码
// @Description 向指定邮箱发送6位注册验证码，同一邮箱1分钟1次、24小时10次
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body dto.SendVerifyCodeRequest true "发送验证码请求"
// @Success 200 {object} result.Response{data=dto.SendVerifyCodeResponse}
// @Router /api/v1/auth/verify-code [post]
func (h *AuthHandler) SendVerifyCode(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.SendVerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.authService.SendVerifyCode(ctx, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "发送验证码失败",
			logger.String("email", utils.MaskEmail(req.Email)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Register 用户注册
// @Summary 用户注册
// @Description 使用邮箱验证码注册新账号
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "注册请求"
// @Success 200 {object} result.Response{data=dto.RegisterResponse}
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.authService.Register(ctx, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "用户注册失败",
			logger.String("email", utils.MaskEmail(req.Email)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}

// Login 用户登录
// @Summary 用户登录
// @Description 邮箱密码登录，返回访问令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "登录请求"
// @Success 200 {object} result.Response{data=dto.LoginResponse}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		code := utils.ExtractErrorCode(err)
		if consts.IsNonServerError(code) {
			result.Fail(c, nil, code)
			return
		}
		logger.Error(ctx, "用户登录失败",
			logger.String("email", utils.MaskEmail(req.Email)),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, code)
		return
	}

	result.Success(c, resp)
}
