package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"DietServer/apps/api/internal/events"
	"DietServer/apps/api/internal/middleware"
	"DietServer/apps/api/internal/mq"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/router"
	v1 "DietServer/apps/api/internal/router/v1"
	"DietServer/apps/api/internal/service"
	"DietServer/apps/api/internal/vision"
	"DietServer/config"
	"DietServer/model"
	"DietServer/pkg/async"
	"DietServer/pkg/kafka"
	"DietServer/pkg/logger"
	"DietServer/pkg/mail"
	pkgminio "DietServer/pkg/minio"
	"DietServer/pkg/mysql"
	pkgredis "DietServer/pkg/redis"
	"DietServer/pkg/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 初始化日志
	logCfg := config.DefaultLoggerConfig()
	zl, err := logger.Build(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger.ReplaceGlobal(zl)
	defer zl.Sync()

	// 2. 初始化MySQL
	dbCfg := config.DefaultMySQLConfig()
	db, err := mysql.Build(dbCfg)
	if err != nil {
		log.Fatalf("初始化MySQL失败: %v", err)
	}
	mysql.ReplaceGlobal(db)

	if err := db.AutoMigrate(
		&model.UserInfo{},
		&model.CoupleRelation{},
		&model.MealRecord{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 3. 初始化Redis
	redisCfg := config.DefaultRedisConfig()
	// 调整 Redis 读写超时时间为 50ms（快速失败）
	redisCfg.ReadTimeout = 50 * time.Millisecond
	redisCfg.WriteTimeout = 50 * time.Millisecond

	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		// Redis 初始化失败不阻塞启动（降级到只用 MySQL）
		logger.Warn(ctx, "Redis 初始化失败，将降级到 MySQL-Only 模式",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		logger.Info(ctx, "Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 4. 初始化异步协程池
	asyncCfg := config.DefaultAsyncConfig()
	if err := async.Init(asyncCfg); err != nil {
		log.Fatalf("初始化协程池失败: %v", err)
	}
	defer async.Release()
	// 异步任务透传 trace_id / user_uuid，保证异步日志可追踪
	async.SetContextPropagator(func(parent context.Context) context.Context {
		ctx := context.Background()
		if traceId, ok := parent.Value("trace_id").(string); ok {
			ctx = context.WithValue(ctx, "trace_id", traceId)
		}
		if userUUID, ok := parent.Value("user_uuid").(string); ok {
			ctx = context.WithValue(ctx, "user_uuid", userUUID)
		}
		return ctx
	})

	// 5. 初始化 Kafka
	kafkaCfg := config.DefaultKafkaConfig()

	// 配对事件 Producer（通知服务等下游消费）
	eventProducer := kafka.NewProducer(kafkaCfg.Brokers, kafkaCfg.PairingEventTopic)
	defer func() {
		if err := eventProducer.Close(); err != nil {
			logger.Error(ctx, "关闭配对事件 Producer 失败", logger.ErrorField("error", err))
		}
	}()
	publisher := events.NewKafkaPublisher(eventProducer)
	logger.Info(ctx, "配对事件 Producer 初始化成功",
		logger.String("topic", kafkaCfg.PairingEventTopic),
	)

	// Redis 重试队列 Producer（仅在 Redis 可用时有意义）
	if redisClient != nil {
		retryProducer := kafka.NewProducer(kafkaCfg.Brokers, kafkaCfg.RedisRetryTopic)
		mq.InitRetryProducer(retryProducer)
		defer func() {
			if err := retryProducer.Close(); err != nil {
				logger.Error(ctx, "关闭 Redis 重试 Producer 失败", logger.ErrorField("error", err))
			}
		}()
		logger.Info(ctx, "Redis 重试 Producer 初始化成功",
			logger.String("topic", kafkaCfg.RedisRetryTopic),
		)
	}

	// 6. 初始化 MinIO 对象存储
	minioCfg := config.DefaultMinIOConfig()
	minioClient, err := pkgminio.Build(minioCfg)
	if err != nil {
		log.Fatalf("初始化MinIO失败: %v", err)
	}
	pkgminio.ReplaceGlobal(minioClient)

	// 7. 初始化小组件
	if err := util.InitSnowflake(1); err != nil {
		log.Fatalf("初始化雪花算法失败: %v", err)
	}

	// 8. 组装依赖 - Repository 层
	authRepo := repository.NewAuthRepository(db, redisClient)
	userRepo := repository.NewUserRepository(db, redisClient)
	pairRepo := repository.NewPairRepository(db, redisClient)
	mealRepo := repository.NewMealRepository(db, redisClient)

	// 9. 组装依赖 - Service 层
	jwtCfg := config.DefaultJWTConfig()
	mailSender := mail.NewSender(config.DefaultMailConfig())
	recognizer := vision.NewRecognizer(config.DefaultVisionConfig())

	authService := service.NewAuthService(authRepo, mailSender, jwtCfg)
	pairingService := service.NewPairingService(userRepo, pairRepo, publisher)
	mealService := service.NewMealService(mealRepo, userRepo, minioClient, recognizer)

	// 10. 组装依赖 - Handler 层
	authHandler := v1.NewAuthHandler(authService)
	pairHandler := v1.NewPairHandler(pairingService)
	mealHandler := v1.NewMealHandler(mealService)

	// 11. 初始化路由与限流器
	serverCfg := config.DefaultServerConfig()
	limiter := middleware.NewRedisRateLimiter(redisClient, float64(serverCfg.RateLimitRate), serverCfg.RateLimitCapacity)
	r := router.InitRouter(serverCfg, jwtCfg, limiter, authHandler, pairHandler, mealHandler)

	// 12. 启动 HTTP Server
	srv := &http.Server{
		Addr:         serverCfg.Addr,
		Handler:      r,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "API 服务启动成功", logger.String("address", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "HTTP Server 启动失败", logger.ErrorField("error", err))
			stop()
		}
	}()

	// 13. 等待退出信号，优雅关闭
	<-ctx.Done()
	logger.Info(context.Background(), "收到退出信号，开始优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP Server 关闭失败", logger.ErrorField("error", err))
	}

	logger.Info(context.Background(), "API 服务已退出")
}
