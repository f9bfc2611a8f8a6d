package dto

// ==================== 配对相关 DTO ====================

// 配对状态投影值
const (
	PairStateNone            = "none"             // 无配对
	PairStatePendingSent     = "pending_sent"     // 已发出请求待对方处理
	PairStatePendingReceived = "pending_received" // 收到请求待本人处理
	PairStateActive          = "active"           // 配对生效中
)

// SendPairRequest 发起配对请求 DTO
type SendPairRequest struct {
	PartnerEmail string `json:"partnerEmail" binding:"required,email"` // 对方邮箱
}

// SendPairResponse 发起配对响应 DTO
type SendPairResponse struct {
	RelationID      int64  `json:"relationId"`      // 关系ID
	PartnerUUID     string `json:"partnerUuid"`     // 对方UUID
	PartnerNickname string `json:"partnerNickname"` // 对方昵称
	RequestedAt     int64  `json:"requestedAt"`     // 发起时间(unix秒)
}

// RespondPairRequest 响应配对请求 DTO（接受/拒绝）
type RespondPairRequest struct {
	RelationID int64  `json:"relationId" binding:"required,gt=0"`        // 关系ID
	Action     string `json:"action" binding:"required,oneof=accept reject"` // accept/reject
}

// CancelPairRequest 取消配对请求 DTO
type CancelPairRequest struct {
	RelationID int64 `json:"relationId" binding:"required,gt=0"` // 关系ID
}

// PairPartner 配对状态里的对方信息
type PairPartner struct {
	UUID     string `json:"uuid"`     // 对方UUID
	Nickname string `json:"nickname"` // 对方昵称
	Avatar   string `json:"avatar"`   // 对方头像URL
}

// PairStatusResponse 配对状态响应 DTO
// State=none 时其余字段为零值
type PairStatusResponse struct {
	State       string       `json:"state"`                 // none/pending_sent/pending_received/active
	RelationID  int64        `json:"relationId,omitempty"`  // 关系ID
	Partner     *PairPartner `json:"partner,omitempty"`     // 对方信息
	RequestedAt int64        `json:"requestedAt,omitempty"` // 发起时间(unix秒)
	AcceptedAt  int64        `json:"acceptedAt,omitempty"`  // 接受时间(unix秒)
}
