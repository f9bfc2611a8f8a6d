package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"DietServer/consts"
	rediskey "DietServer/consts/redisKey"
	"DietServer/pkg/logger"
	"DietServer/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// luaTokenBucket Redis 令牌桶 Lua 脚本
// 原子性地补充令牌并判断是否允许通过
//
//	KEYS[1]: 限流 key (如: rate:limit:ip:{ip})
//	ARGV[1]: 当前时间戳 (毫秒)
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 每次请求消耗的令牌数
//
// 返回 1 允许通过，0 令牌不足
const luaTokenBucket = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2])

if current_tokens == nil then
    current_tokens = capacity
end
if last_time == nil then
    last_time = now
end

local time_diff = math.max(0, now - last_time)
local new_tokens = math.floor((time_diff * rate) / 1000)

if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call('HMSET', key, 'tokens', current_tokens, 'last_time', last_time)

local fill_time = math.ceil(capacity / rate)
local ttl = math.max(60, fill_time * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`

// RedisRateLimiter 基于 Redis 令牌桶的限流器
// Redis 不可用时降级到进程内 x/time 限流器（多实例下阈值会放大，但不会完全失去保护）
type RedisRateLimiter struct {
	redisClient *redis.Client
	rate        float64 // 每秒产生的令牌数
	burst       int     // 令牌桶容量

	mu       sync.Mutex
	fallback map[string]*rate.Limiter // key -> 本地限流器
}

// NewRedisRateLimiter 创建限流器
// ratePerSec: 每秒产生的令牌数; burst: 令牌桶容量
func NewRedisRateLimiter(redisClient *redis.Client, ratePerSec float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		redisClient: redisClient,
		rate:        ratePerSec,
		burst:       burst,
		fallback:    make(map[string]*rate.Limiter),
	}
}

// Allow 检查是否允许请求通过
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if r.redisClient == nil {
		return r.allowLocal(key)
	}

	// Redis 操作加独立短超时，防止 Redis 响应慢拖死请求链路
	redisCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	now := time.Now().UnixMilli()
	resultVal, err := r.redisClient.Eval(redisCtx, luaTokenBucket, []string{key}, now, r.burst, r.rate, 1).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Redis 限流检查超时，降级到本地限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		} else {
			logger.Error(ctx, "Redis 限流检查失败，降级到本地限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		}
		return r.allowLocal(key)
	}

	allowed, ok := resultVal.(int64)
	if !ok {
		return r.allowLocal(key)
	}
	return allowed == 1
}

// allowLocal 进程内令牌桶兜底
func (r *RedisRateLimiter) allowLocal(key string) bool {
	r.mu.Lock()
	limiter, exists := r.fallback[key]
	if !exists {
		// 简单兜底防止无限增长
		if len(r.fallback) > 100000 {
			r.fallback = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(r.rate), r.burst)
		r.fallback[key] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}

// IPRateLimitMiddleware 基于 IP 的限流中间件
func IPRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, exists := GetClientIPSafe(c)
		if !exists || ip == "" {
			// 无法获取 IP，放行请求（记录警告）
			logger.Warn(c, "无法获取客户端 IP，跳过限流检查",
				logger.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		if !limiter.Allow(c, rediskey.RateLimitIPKey(ip)) {
			logger.Warn(c, "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			result.Fail(c, nil, consts.CodeTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
