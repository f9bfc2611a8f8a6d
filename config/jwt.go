package config

import (
	"os"
	"time"
)

// JWTConfig 访问令牌配置。
// Secret 生产环境必须通过环境变量 DIET_JWT_SECRET 注入。
type JWTConfig struct {
	Secret      string        `json:"-" yaml:"-"`
	Issuer      string        `json:"issuer" yaml:"issuer"`
	AccessTTL   time.Duration `json:"accessTtl" yaml:"accessTtl"`
}

// DefaultJWTConfig 返回默认配置（本地开发密钥仅用于调试）。
func DefaultJWTConfig() JWTConfig {
	secret := os.Getenv("DIET_JWT_SECRET")
	if secret == "" {
		secret = "dev-only-secret-do-not-use-in-prod"
	}
	return JWTConfig{
		Secret:    secret,
		Issuer:    "dietserver",
		AccessTTL: 7 * 24 * time.Hour,
	}
}
