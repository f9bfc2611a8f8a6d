package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/utils"
	"DietServer/config"
	"DietServer/consts"
	rediskey "DietServer/consts/redisKey"
	"DietServer/model"
	"DietServer/pkg/async"
	"DietServer/pkg/logger"
	"DietServer/pkg/util"

	"golang.org/x/crypto/bcrypt"
)

// IVerifyCodeMailer 验证码邮件发送接口（pkg/mail.Sender 实现）
type IVerifyCodeMailer interface {
	SendVerifyCode(to, code string) error
}

// authServiceImpl 认证服务实现
type authServiceImpl struct {
	authRepo repository.IAuthRepository
	mailer   IVerifyCodeMailer
	jwtCfg   config.JWTConfig
}

// NewAuthService 创建认证服务实例
func NewAuthService(authRepo repository.IAuthRepository, mailer IVerifyCodeMailer, jwtCfg config.JWTConfig) IAuthService {
	return &authServiceImpl{
		authRepo: authRepo,
		mailer:   mailer,
		jwtCfg:   jwtCfg,
	}
}

// SendVerifyCode 发送注册验证码
// 业务流程：
//  1. 邮箱已注册直接拒绝（避免给已有账号刷验证码邮件）
//  2. 两级限流（1分钟/24小时）
//  3. 生成6位验证码写入 Redis，邮件异步发送
//
// 错误码映射：
//   - CodeUserAlreadyExist: 邮箱已注册
//   - CodeTooManyRequests: 触发发送限流
//   - CodeServiceUnavailable: 验证码存储暂不可用，可稍后重试
func (s *authServiceImpl) SendVerifyCode(ctx context.Context, req *dto.SendVerifyCodeRequest) (*dto.SendVerifyCodeResponse, error) {
	logger.Info(ctx, "发送注册验证码",
		logger.String("email", utils.MaskEmail(req.Email)),
	)

	// 1. 邮箱已注册直接拒绝
	exists, err := s.authRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		logger.Error(ctx, "检查邮箱是否存在失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if exists {
		return nil, utils.NewBizError(consts.CodeUserAlreadyExist)
	}

	// 2. 发送限流
	limited, err := s.authRepo.VerifyCodeRateLimited(ctx, req.Email)
	if err != nil {
		logger.Error(ctx, "验证码限流校验失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if limited {
		return nil, utils.NewBizError(consts.CodeTooManyRequests)
	}

	// 3. 生成并存储验证码
	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	if err := s.authRepo.StoreVerifyCode(ctx, req.Email, code, rediskey.VerifyCodeTTL); err != nil {
		logger.Error(ctx, "存储验证码失败", logger.ErrorField("error", err))
		// Redis 故障是临时的，引导客户端稍后重试
		if errors.Is(err, repository.ErrRedis) {
			return nil, utils.NewBizError(consts.CodeServiceUnavailable)
		}
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	// 邮件发送走异步，SMTP 延迟不占请求耗时
	email := req.Email
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := s.mailer.SendVerifyCode(email, code); err != nil {
			logger.Error(runCtx, "验证码邮件发送失败",
				logger.String("email", utils.MaskEmail(email)),
				logger.ErrorField("error", err),
			)
		}
	}, 0)

	return &dto.SendVerifyCodeResponse{
		ExpireSeconds: int64(rediskey.VerifyCodeTTL.Seconds()),
	}, nil
}

// Register 用户注册
// 业务流程：
//  1. 校验并消耗验证码
//  2. bcrypt 哈希密码后创建用户
//
// 错误码映射：
//   - CodeVerifyCodeError: 验证码错误或已过期
//   - CodeUserAlreadyExist: 邮箱已被注册
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	logger.Info(ctx, "用户注册请求",
		logger.String("email", utils.MaskEmail(req.Email)),
		logger.String("nickname", req.Nickname),
	)

	// 1. 校验并消耗验证码
	valid, err := s.authRepo.ConsumeVerifyCode(ctx, req.Email, req.VerifyCode)
	if err != nil {
		logger.Error(ctx, "校验验证码失败", logger.ErrorField("error", err))
		if errors.Is(err, repository.ErrRedis) {
			return nil, utils.NewBizError(consts.CodeServiceUnavailable)
		}
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if !valid {
		return nil, utils.NewBizError(consts.CodeVerifyCodeError)
	}

	// 2. 创建用户
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error(ctx, "生成密码哈希失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	user := &model.UserInfo{
		Uuid:     util.NewUUID(),
		Email:    req.Email,
		Password: string(hashedPassword),
		Nickname: req.Nickname,
	}
	created, err := s.authRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, utils.NewBizError(consts.CodeUserAlreadyExist)
		}
		logger.Error(ctx, "创建用户失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	return &dto.RegisterResponse{
		UserUUID: created.Uuid,
		Email:    created.Email,
		Nickname: created.Nickname,
	}, nil
}

// Login 用户登录（密码）
// 错误码映射：
//   - CodeUserNotFound: 邮箱未注册
//   - CodePasswordError: 密码错误
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	logger.Info(ctx, "用户登录请求",
		logger.String("email", utils.MaskEmail(req.Email)),
	)

	// 1. 查询用户
	user, err := s.authRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, utils.NewBizError(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询用户失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	// 2. 校验密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, utils.NewBizError(consts.CodePasswordError)
	}

	// 3. 签发访问令牌
	token, err := utils.GenerateToken(s.jwtCfg, user.Uuid)
	if err != nil {
		logger.Error(ctx, "签发令牌失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtCfg.AccessTTL.Seconds()),
		UserInfo: &dto.UserInfo{
			UUID:     user.Uuid,
			Email:    user.Email,
			Nickname: user.Nickname,
			Avatar:   user.Avatar,
		},
	}, nil
}
