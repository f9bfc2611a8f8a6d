package config

import (
	"fmt"
	"time"
)

// MySQLConfig MySQL 连接配置。
// Replicas 非空时启用 dbresolver 读写分离（状态查询类读请求走从库）。
type MySQLConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	Charset  string `json:"charset" yaml:"charset"`

	// 从库 DSN 列表（可为空）
	Replicas []string `json:"replicas" yaml:"replicas"`

	// 连接池配置
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`

	// 慢查询日志阈值
	SlowThreshold time.Duration `json:"slowThreshold" yaml:"slowThreshold"`
}

// DSN 拼接主库 DSN。
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// DefaultMySQLConfig 返回本地开发的默认配置（与 docker-compose.yml 对齐）。
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Host:            "mysql",
		Port:            3306,
		User:            "dietserver",
		Password:        "dietserver",
		Database:        "dietserver",
		Charset:         "utf8mb4",
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		SlowThreshold:   200 * time.Millisecond,
	}
}
