package router

import (
	"DietServer/apps/api/internal/middleware"
	v1 "DietServer/apps/api/internal/router/v1"
	"DietServer/config"
	"DietServer/pkg/util"

	"github.com/gin-gonic/gin"
)

// InitRouter 初始化路由
// 处理器通过依赖注入传入
func InitRouter(
	serverCfg config.ServerConfig,
	jwtCfg config.JWTConfig,
	limiter *middleware.RedisRateLimiter,
	authHandler *v1.AuthHandler,
	pairHandler *v1.PairHandler,
	mealHandler *v1.MealHandler,
) *gin.Engine {
	r := gin.New()

	// 恢复中间件
	r.Use(middleware.GinRecovery(true))

	// 追踪中间件 (生成 trace_id)
	r.Use(util.TraceLogger())

	// 客户端 IP 中间件
	r.Use(middleware.ClientIPMiddleware())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// Prometheus 监控中间件
	r.Use(middleware.PrometheusMiddleware())

	// 跨域中间件
	r.Use(middleware.CorsMiddleware())

	// 请求级超时
	r.Use(middleware.TimeoutMiddleware(serverCfg.DefaultHandlerTimeout))

	// 基于 IP 的限流
	r.Use(middleware.IPRateLimitMiddleware(limiter))

	// 健康检查（无需认证）
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Prometheus 指标暴露接口
	// Prometheus 会定时访问这个接口来拉取监控数据
	r.GET("/metrics", middleware.PrometheusHandler())

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 公开接口（不需要认证）
		auth := api.Group("/auth")
		{
			auth.POST("/verify-code", authHandler.SendVerifyCode)
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// 需要认证的接口
		authed := api.Group("")
		authed.Use(middleware.JWTAuthMiddleware(jwtCfg))
		{
			// 配对相关接口
			pair := authed.Group("/pair")
			{
				pair.POST("/request", pairHandler.SendRequest)
				pair.POST("/respond", pairHandler.Respond)
				pair.POST("/cancel", pairHandler.Cancel)
				pair.POST("/disconnect", pairHandler.Disconnect)
				pair.GET("/status", pairHandler.GetStatus)
			}

			// 饮食记录相关接口
			meal := authed.Group("/meal")
			{
				meal.POST("", mealHandler.Create)
				meal.GET("/list", mealHandler.List)
				meal.POST("/recognize", mealHandler.Recognize)
				meal.DELETE("/:id", mealHandler.Delete)
			}
		}
	}

	return r
}
