package rediskey

import (
	"fmt"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// VerifyCodeTTL 注册验证码 TTL
	VerifyCodeTTL = 5 * time.Minute
	// VerifyCodeMinuteTTL 验证码 1 分钟限流 TTL
	VerifyCodeMinuteTTL = 1 * time.Minute
	// VerifyCode24HTTL 验证码 24 小时限流 TTL
	VerifyCode24HTTL = 24 * time.Hour

	// PairStatusTTL 配对状态缓存 TTL
	PairStatusTTL = 1 * time.Hour
	// PairStatusEmptyTTL 配对状态空值缓存 TTL
	PairStatusEmptyTTL = 5 * time.Minute

	// UserInfoTTL 用户信息缓存 TTL
	UserInfoTTL = 1 * time.Hour
	// UserInfoEmptyTTL 用户信息空值缓存 TTL
	UserInfoEmptyTTL = 5 * time.Minute
)

// ==================== Key 构造函数 ====================

// VerifyCodeKey 注册验证码 Key: auth:verify_code:{email}
func VerifyCodeKey(email string) string {
	return fmt.Sprintf("auth:verify_code:%s", email)
}

// VerifyCodeMinuteKey 验证码 1 分钟限流 Key: auth:verify_code:1m:{email}
func VerifyCodeMinuteKey(email string) string {
	return fmt.Sprintf("auth:verify_code:1m:%s", email)
}

// VerifyCode24HKey 验证码 24 小时限流 Key: auth:verify_code:24h:{email}
func VerifyCode24HKey(email string) string {
	return fmt.Sprintf("auth:verify_code:24h:%s", email)
}

// PairStatusKey 配对状态缓存 Key: pair:status:{user_uuid}
func PairStatusKey(userUUID string) string {
	return fmt.Sprintf("pair:status:%s", userUUID)
}

// UserInfoKey 用户信息缓存 Key: user:info:{user_uuid}
func UserInfoKey(userUUID string) string {
	return fmt.Sprintf("user:info:%s", userUUID)
}

// RateLimitIPKey 限流 Key: rate:limit:ip:{ip}
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}
