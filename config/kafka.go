package config

// KafkaConsumerConfig 消费者配置。
type KafkaConsumerConfig struct {
	GroupID string `json:"groupId" yaml:"groupId"`
}

// KafkaConfig Kafka 配置。
// PairingEventTopic: 配对生命周期事件（通知服务消费）。
// RedisRetryTopic: Redis 写失败任务的重试队列。
type KafkaConfig struct {
	Brokers           []string            `json:"brokers" yaml:"brokers"`
	PairingEventTopic string              `json:"pairingEventTopic" yaml:"pairingEventTopic"`
	RedisRetryTopic   string              `json:"redisRetryTopic" yaml:"redisRetryTopic"`
	ConsumerConfig    KafkaConsumerConfig `json:"consumerConfig" yaml:"consumerConfig"`
}

// DefaultKafkaConfig 返回本地开发的默认配置。
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:           []string{"kafka:9092"},
		PairingEventTopic: "pairing.events",
		RedisRetryTopic:   "redis.retry.tasks",
		ConsumerConfig: KafkaConsumerConfig{
			GroupID: "dietserver-redis-retry",
		},
	}
}
