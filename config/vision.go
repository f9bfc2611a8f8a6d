package config

import (
	"os"
	"time"
)

// VisionConfig 食物识别（视觉大模型 API）配置。
type VisionConfig struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl"` // API 地址
	APIKey  string `json:"-" yaml:"-"`             // 通过环境变量 DIET_VISION_API_KEY 注入
	Model   string `json:"model" yaml:"model"`     // 模型名

	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"` // 单次请求超时
	MaxRetries     int           `json:"maxRetries" yaml:"maxRetries"`         // 最大重试次数
	RetryInterval  time.Duration `json:"retryInterval" yaml:"retryInterval"`   // 重试间隔基数

	// 熔断配置
	BreakerMaxRequests uint32        `json:"breakerMaxRequests" yaml:"breakerMaxRequests"` // 半开状态放行请求数
	BreakerInterval    time.Duration `json:"breakerInterval" yaml:"breakerInterval"`       // 统计窗口
	BreakerTimeout     time.Duration `json:"breakerTimeout" yaml:"breakerTimeout"`         // 熔断后恢复等待时间
}

// DefaultVisionConfig 返回默认配置。
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		BaseURL:            "https://api.vision.example.com/v1/recognize",
		APIKey:             os.Getenv("DIET_VISION_API_KEY"),
		Model:              "food-vl-base",
		RequestTimeout:     15 * time.Second,
		MaxRetries:         2,
		RetryInterval:      500 * time.Millisecond,
		BreakerMaxRequests: 3,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
	}
}
