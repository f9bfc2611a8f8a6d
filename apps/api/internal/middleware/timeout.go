package middleware

import (
	"context"
	"time"

	"DietServer/consts"
	"DietServer/pkg/logger"
	"DietServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddleware 请求超时控制中间件
// 不开启额外 Goroutine，依赖下游 Context 感知超时
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 基于 c.Request.Context() 派生带超时的 context
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		// 2. 替换请求的 context，后续 Handler、DB/Redis 调用都受此超时约束
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// 3. 后置兜底：下游没来得及写响应时由中间件写超时错误
		if ctx.Err() == context.DeadlineExceeded {
			if !c.Writer.Written() {
				logCtx := NewContextWithGin(c)
				logger.Warn(logCtx, "请求处理超时",
					logger.String("path", c.Request.URL.Path),
					logger.Duration("timeout", timeout),
				)
				result.Fail(c, nil, consts.CodeTimeoutError)
			}
		}
	}
}
