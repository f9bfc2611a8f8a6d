package config

import "time"

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// 请求级超时（TimeoutMiddleware）
	DefaultHandlerTimeout time.Duration `json:"defaultHandlerTimeout" yaml:"defaultHandlerTimeout"`

	// 限流配置（Redis 令牌桶）
	RateLimitCapacity int `json:"rateLimitCapacity" yaml:"rateLimitCapacity"` // 桶容量
	RateLimitRate     int `json:"rateLimitRate" yaml:"rateLimitRate"`         // 每秒令牌数
}

// DefaultServerConfig 返回本地开发的默认配置。
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                  ":8080",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ShutdownTimeout:       10 * time.Second,
		DefaultHandlerTimeout: 5 * time.Second,
		RateLimitCapacity:     20,
		RateLimitRate:         10,
	}
}
