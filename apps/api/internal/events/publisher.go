package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"DietServer/pkg/async"
	"DietServer/pkg/kafka"
	"DietServer/pkg/logger"
)

// 配对生命周期事件类型
const (
	EventPairRequested    = "pair.requested"
	EventPairAccepted     = "pair.accepted"
	EventPairRejected     = "pair.rejected"
	EventPairCancelled    = "pair.cancelled"
	EventPairDisconnected = "pair.disconnected"
)

// PairingEvent 配对生命周期事件
// 下游消费方：推送服务（通知对方）、数据统计
type PairingEvent struct {
	Type       string `json:"type"`        // 事件类型
	RelationID int64  `json:"relation_id"` // 关系ID
	ActorUUID  string `json:"actor_uuid"`  // 触发操作的用户
	PeerUUID   string `json:"peer_uuid"`   // 关系中的另一方
	OccurredAt int64  `json:"occurred_at"` // 发生时间(unix毫秒)
	TraceID    string `json:"trace_id,omitempty"`
}

// IPublisher 配对事件发布接口
type IPublisher interface {
	// PublishPairingEvent 发布配对事件（尽力而为，不阻塞主流程）
	PublishPairingEvent(ctx context.Context, event PairingEvent)
}

// kafkaPublisher 基于 Kafka 的事件发布实现
// 以 relation_id 作为分区 key，同一关系的事件保序
type kafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher 创建 Kafka 事件发布器
func NewKafkaPublisher(producer *kafka.Producer) IPublisher {
	return &kafkaPublisher{producer: producer}
}

// PublishPairingEvent 发布配对事件
// 事件丢失只影响通知，不影响配对数据一致性，失败只记日志
func (p *kafkaPublisher) PublishPairingEvent(ctx context.Context, event PairingEvent) {
	if event.OccurredAt == 0 {
		event.OccurredAt = time.Now().UnixMilli()
	}
	if traceID, ok := ctx.Value("trace_id").(string); ok {
		event.TraceID = traceID
	}

	async.RunSafe(ctx, func(runCtx context.Context) {
		data, err := json.Marshal(event)
		if err != nil {
			logger.Error(runCtx, "配对事件序列化失败",
				logger.String("event_type", event.Type),
				logger.ErrorField("error", err),
			)
			return
		}

		key := []byte(strconv.FormatInt(event.RelationID, 10))
		if err := p.producer.Send(runCtx, key, data); err != nil {
			logger.Error(runCtx, "配对事件发送失败",
				logger.String("event_type", event.Type),
				logger.Int64("relation_id", event.RelationID),
				logger.ErrorField("error", err),
			)
		}
	}, 0)
}

// NoopPublisher 空实现（单测与本地无 Kafka 场景）
type NoopPublisher struct{}

func (NoopPublisher) PublishPairingEvent(ctx context.Context, event PairingEvent) {}
