package mq

import (
	"context"
	"encoding/json"
	"errors"

	"DietServer/pkg/kafka"
)

var retryProducer *kafka.Producer

// InitRetryProducer 设置 Redis 重试队列的生产者。进程启动时调用一次。
func InitRetryProducer(p *kafka.Producer) {
	retryProducer = p
}

// SendRedisTask 把失败的 Redis 任务投递到重试队列。
// 以 UserUUID 作为分区 key，同一用户的补偿操作保序。
func SendRedisTask(ctx context.Context, task RedisTask) error {
	if retryProducer == nil {
		return errors.New("retry producer not initialized")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return retryProducer.Send(ctx, []byte(task.UserUUID), data)
}
