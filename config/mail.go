package config

import "os"

// MailConfig SMTP 邮件配置（注册验证码）。
type MailConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"` // 环境变量 DIET_SMTP_PASSWORD
	From     string `json:"from" yaml:"from"`
}

// DefaultMailConfig 返回默认配置。
func DefaultMailConfig() MailConfig {
	return MailConfig{
		Host:     "smtp.example.com",
		Port:     465,
		Username: "noreply@example.com",
		Password: os.Getenv("DIET_SMTP_PASSWORD"),
		From:     "DietServer <noreply@example.com>",
	}
}
