package middleware

import (
	"errors"
	"strings"

	"DietServer/apps/api/internal/utils"
	"DietServer/config"
	"DietServer/consts"
	"DietServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware JWT 认证中间件
// 从请求头中提取 Token 并验证，验证通过后将用户信息存入 Context
func JWTAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 Header 中获取 Authorization
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// 客户端请求错误,属于正常业务流程,不记录日志
			result.Fail(c, nil, consts.CodeUnauthorized)
			c.Abort()
			return
		}

		// 2. 验证格式: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			result.Fail(c, nil, consts.CodeUnauthorized)
			c.Abort()
			return
		}

		// 3. 解析并验证 Token
		claims, err := utils.ParseToken(jwtCfg, parts[1])
		if err != nil {
			code := consts.CodeInvalidToken
			if errors.Is(err, utils.ErrTokenExpired) {
				code = consts.CodeTokenExpired
			}
			result.Fail(c, nil, code)
			c.Abort()
			return
		}

		// 4. 将用户信息存入 Context，供后续 Handler 使用
		c.Set("user_uuid", claims.UserUUID)

		c.Next()
	}
}

// GetUserUUID 从 Context 中获取当前登录用户的 UUID
func GetUserUUID(c *gin.Context) (string, bool) {
	userUUID, exists := c.Get("user_uuid")
	if !exists {
		return "", false
	}
	uuid, ok := userUUID.(string)
	return uuid, ok
}
