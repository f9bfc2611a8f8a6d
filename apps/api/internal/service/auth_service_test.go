package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/utils"
	"DietServer/config"
	"DietServer/consts"
	"DietServer/model"
	"DietServer/pkg/async"
	"DietServer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTestInitOnce sync.Once

func initAuthTestEnv() {
	authTestInitOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		_ = async.Init(config.DefaultAsyncConfig())
	})
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:    "test-secret",
		Issuer:    "diet-server-test",
		AccessTTL: time.Hour,
	}
}

type fakeAuthRepoForService struct {
	getByEmailFn            func(context.Context, string) (*model.UserInfo, error)
	existsByEmailFn         func(context.Context, string) (bool, error)
	createFn                func(context.Context, *model.UserInfo) (*model.UserInfo, error)
	storeVerifyCodeFn       func(context.Context, string, string, time.Duration) error
	consumeVerifyCodeFn     func(context.Context, string, string) (bool, error)
	verifyCodeRateLimitedFn func(context.Context, string) (bool, error)
}

func (f *fakeAuthRepoForService) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	if f.getByEmailFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getByEmailFn(ctx, email)
}

func (f *fakeAuthRepoForService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if f.existsByEmailFn == nil {
		return false, nil
	}
	return f.existsByEmailFn(ctx, email)
}

func (f *fakeAuthRepoForService) Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error) {
	if f.createFn == nil {
		return user, nil
	}
	return f.createFn(ctx, user)
}

func (f *fakeAuthRepoForService) StoreVerifyCode(ctx context.Context, email, verifyCode string, expireDuration time.Duration) error {
	if f.storeVerifyCodeFn == nil {
		return nil
	}
	return f.storeVerifyCodeFn(ctx, email, verifyCode, expireDuration)
}

func (f *fakeAuthRepoForService) ConsumeVerifyCode(ctx context.Context, email, verifyCode string) (bool, error) {
	if f.consumeVerifyCodeFn == nil {
		return false, nil
	}
	return f.consumeVerifyCodeFn(ctx, email, verifyCode)
}

func (f *fakeAuthRepoForService) VerifyCodeRateLimited(ctx context.Context, email string) (bool, error) {
	if f.verifyCodeRateLimitedFn == nil {
		return false, nil
	}
	return f.verifyCodeRateLimitedFn(ctx, email)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent chan struct{}
	to   string
	code string
	err  error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan struct{}, 1)}
}

func (f *fakeMailer) SendVerifyCode(to, code string) error {
	f.mu.Lock()
	f.to = to
	f.code = code
	f.mu.Unlock()
	select {
	case f.sent <- struct{}{}:
	default:
	}
	return f.err
}

func TestAuthServiceSendVerifyCode(t *testing.T) {
	initAuthTestEnv()

	t.Run("email_already_registered", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			existsByEmailFn: func(_ context.Context, email string) (bool, error) {
				assert.Equal(t, "alice@test.com", email)
				return true, nil
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.SendVerifyCode(context.Background(), &dto.SendVerifyCodeRequest{Email: "alice@test.com"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeUserAlreadyExist)
	})

	t.Run("rate_limited", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			verifyCodeRateLimitedFn: func(_ context.Context, _ string) (bool, error) {
				return true, nil
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.SendVerifyCode(context.Background(), &dto.SendVerifyCodeRequest{Email: "alice@test.com"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeTooManyRequests)
	})

	t.Run("store_failed", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			storeVerifyCodeFn: func(_ context.Context, _, _ string, _ time.Duration) error {
				return errors.New("redis down")
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.SendVerifyCode(context.Background(), &dto.SendVerifyCodeRequest{Email: "alice@test.com"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeInternalError)
	})

	t.Run("store_transient_failure_maps_to_retryable", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			storeVerifyCodeFn: func(_ context.Context, _, _ string, _ time.Duration) error {
				return repository.WrapRedisError(errors.New("connection refused"))
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.SendVerifyCode(context.Background(), &dto.SendVerifyCodeRequest{Email: "alice@test.com"})
		require.Nil(t, resp)
		// Redis 临时故障提示客户端稍后重试，而不是笼统的内部错误
		requirePairBizCode(t, err, consts.CodeServiceUnavailable)
	})

	t.Run("success_sends_mail_async", func(t *testing.T) {
		var storedCode string
		mailer := newFakeMailer()
		svc := NewAuthService(&fakeAuthRepoForService{
			storeVerifyCodeFn: func(_ context.Context, email, code string, _ time.Duration) error {
				assert.Equal(t, "alice@test.com", email)
				storedCode = code
				return nil
			},
		}, mailer, testJWTConfig())

		resp, err := svc.SendVerifyCode(context.Background(), &dto.SendVerifyCodeRequest{Email: "alice@test.com"})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Positive(t, resp.ExpireSeconds)
		require.Len(t, storedCode, 6)

		select {
		case <-mailer.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("验证码邮件未触发发送")
		}
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		assert.Equal(t, "alice@test.com", mailer.to)
		assert.Equal(t, storedCode, mailer.code)
	})
}

func TestAuthServiceRegister(t *testing.T) {
	initAuthTestEnv()

	t.Run("verify_code_mismatch", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			consumeVerifyCodeFn: func(_ context.Context, _, _ string) (bool, error) {
				return false, nil
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Email: "alice@test.com", Password: "secret123", VerifyCode: "123456",
		})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeVerifyCodeError)
	})

	t.Run("verify_code_store_transient_failure", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			consumeVerifyCodeFn: func(_ context.Context, _, _ string) (bool, error) {
				return false, repository.WrapRedisError(errors.New("connection refused"))
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Email: "alice@test.com", Password: "secret123", VerifyCode: "123456",
		})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeServiceUnavailable)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			consumeVerifyCodeFn: func(_ context.Context, _, _ string) (bool, error) {
				return true, nil
			},
			createFn: func(_ context.Context, _ *model.UserInfo) (*model.UserInfo, error) {
				return nil, repository.ErrDuplicateKey
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Email: "alice@test.com", Password: "secret123", VerifyCode: "123456",
		})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeUserAlreadyExist)
	})

	t.Run("success_hashes_password", func(t *testing.T) {
		var created *model.UserInfo
		svc := NewAuthService(&fakeAuthRepoForService{
			consumeVerifyCodeFn: func(_ context.Context, email, code string) (bool, error) {
				assert.Equal(t, "alice@test.com", email)
				assert.Equal(t, "123456", code)
				return true, nil
			},
			createFn: func(_ context.Context, user *model.UserInfo) (*model.UserInfo, error) {
				created = user
				return user, nil
			},
		}, newFakeMailer(), testJWTConfig())

		resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Email: "alice@test.com", Password: "secret123", VerifyCode: "123456", Nickname: "Alice",
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		require.NotNil(t, created)
		assert.NotEmpty(t, created.Uuid)
		assert.Equal(t, created.Uuid, resp.UserUUID)
		assert.Equal(t, "Alice", resp.Nickname)
		// 密码必须是 bcrypt 哈希而非明文
		assert.NotEqual(t, "secret123", created.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("secret123")))
	})
}

func TestAuthServiceLogin(t *testing.T) {
	initAuthTestEnv()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.UserInfo{
		Uuid: "uuid-alice", Email: "alice@test.com", Password: string(hashed),
		Nickname: "Alice", Avatar: "http://a/1.png",
	}

	t.Run("user_not_found", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{}, newFakeMailer(), testJWTConfig())
		resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "nobody@test.com", Password: "secret123"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeUserNotFound)
	})

	t.Run("wrong_password", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return user, nil
			},
		}, newFakeMailer(), testJWTConfig())
		resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: user.Email, Password: "wrong"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePasswordError)
	})

	t.Run("success_issues_parseable_token", func(t *testing.T) {
		jwtCfg := testJWTConfig()
		svc := NewAuthService(&fakeAuthRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return user, nil
			},
		}, newFakeMailer(), jwtCfg)

		resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: user.Email, Password: "secret123"})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, int64(3600), resp.ExpiresIn)
		require.NotNil(t, resp.UserInfo)
		assert.Equal(t, "uuid-alice", resp.UserInfo.UUID)

		claims, err := utils.ParseToken(jwtCfg, resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "uuid-alice", claims.UserUUID)
	})
}
