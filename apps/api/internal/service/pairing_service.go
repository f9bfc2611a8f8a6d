package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/events"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/utils"
	"DietServer/consts"
	"DietServer/model"
	"DietServer/pkg/logger"
	"DietServer/pkg/util"
)

// pairingServiceImpl 配对服务实现
type pairingServiceImpl struct {
	userRepo  repository.IUserRepository
	pairRepo  repository.IPairRepository
	publisher events.IPublisher
}

// NewPairingService 创建配对服务实例
func NewPairingService(
	userRepo repository.IUserRepository,
	pairRepo repository.IPairRepository,
	publisher events.IPublisher,
) IPairingService {
	return &pairingServiceImpl{
		userRepo:  userRepo,
		pairRepo:  pairRepo,
		publisher: publisher,
	}
}

// SendRequest 向指定邮箱的用户发起配对请求
// 业务流程：
//  1. 定位双方用户，拒绝自配对
//  2. 任一方已有伴侣则拒绝
//  3. 查互斥键：同一对用户已有存活关系时按方向给出明确错误
//  4. 落库 pending 关系（互斥键唯一索引兜底并发）
//
// 错误码映射：
//   - CodeUserNotFound: 对方邮箱未注册
//   - CodeSelfPairing: 向自己发起
//   - CodeAlreadyPaired: 任一方已有伴侣
//   - CodePairRequestAlreadySent / CodePairRequestAlreadyReceived: 重复请求
func (s *pairingServiceImpl) SendRequest(ctx context.Context, userUUID string, req *dto.SendPairRequest) (*dto.SendPairResponse, error) {
	logger.Info(ctx, "发起配对请求",
		logger.String("user_uuid", utils.MaskUUID(userUUID)),
		logger.String("partner_email", utils.MaskEmail(req.PartnerEmail)),
	)

	// 1. 定位双方
	requester, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询发起方失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if requester == nil {
		return nil, utils.NewBizError(consts.CodeUserNotFound)
	}

	partner, err := s.userRepo.GetByEmail(ctx, req.PartnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, utils.NewBizError(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询对方失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if partner.Uuid == userUUID {
		return nil, utils.NewBizError(consts.CodeSelfPairing)
	}

	// 2. 任一方已有伴侣
	if requester.PartnerUuid != nil || partner.PartnerUuid != nil {
		return nil, utils.NewBizError(consts.CodeAlreadyPaired)
	}

	// 3. 同一对用户已有存活关系
	pairKey := model.PairKey(userUUID, partner.Uuid)
	if existing, err := s.pairRepo.GetLiveRelationByPairKey(ctx, pairKey); err == nil {
		return nil, s.mapLiveRelationConflict(existing, userUUID)
	} else if !errors.Is(err, repository.ErrRecordNotFound) {
		logger.Error(ctx, "查询存活关系失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	// 4. 落库 pending 关系
	now := time.Now()
	rel := &model.CoupleRelation{
		Id:            util.NextID(),
		User1Uuid:     userUUID,
		User2Uuid:     partner.Uuid,
		RequesterUuid: userUUID,
		Status:        model.RelationStatusPending,
		ExclusiveKey:  &pairKey,
		RequestedAt:   now,
	}
	if err := s.pairRepo.CreateRelation(ctx, rel); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// 并发发起被唯一索引拦下，回查给出准确错误
			if existing, qErr := s.pairRepo.GetLiveRelationByPairKey(ctx, pairKey); qErr == nil {
				return nil, s.mapLiveRelationConflict(existing, userUUID)
			}
			return nil, utils.NewBizError(consts.CodePairRequestAlreadySent)
		}
		logger.Error(ctx, "创建配对关系失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	s.publisher.PublishPairingEvent(ctx, events.PairingEvent{
		Type:       events.EventPairRequested,
		RelationID: rel.Id,
		ActorUUID:  userUUID,
		PeerUUID:   partner.Uuid,
	})

	return &dto.SendPairResponse{
		RelationID:      rel.Id,
		PartnerUUID:     partner.Uuid,
		PartnerNickname: partner.Nickname,
		RequestedAt:     now.Unix(),
	}, nil
}

// mapLiveRelationConflict 把已存在的存活关系映射为方向化的业务错误
func (s *pairingServiceImpl) mapLiveRelationConflict(rel *model.CoupleRelation, userUUID string) error {
	if rel.Status == model.RelationStatusActive {
		return utils.NewBizError(consts.CodeAlreadyPaired)
	}
	if rel.RequesterUuid == userUUID {
		return utils.NewBizError(consts.CodePairRequestAlreadySent)
	}
	return utils.NewBizError(consts.CodePairRequestAlreadyReceived)
}

// RespondRequest 接受或拒绝收到的配对请求
// 接受走事务（CAS 激活 + 双方伴侣位守门绑定），拒绝走 CAS 状态迁移
//
// 错误码映射：
//   - CodeRelationNotFound: 关系不存在
//   - CodePairForbidden: 非关系成员 或 发起方试图处理自己的请求
//   - CodeRelationNotPending: 关系已被并发处理
//   - CodeAlreadyPaired: 接受时任一方伴侣位已被占用
func (s *pairingServiceImpl) RespondRequest(ctx context.Context, userUUID string, req *dto.RespondPairRequest) (*dto.PairStatusResponse, error) {
	rel, err := s.pairRepo.GetRelationByID(ctx, req.RelationID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, utils.NewBizError(consts.CodeRelationNotFound)
		}
		logger.Error(ctx, "查询配对关系失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}

	if !rel.HasParty(userUUID) {
		return nil, utils.NewBizError(consts.CodePairForbidden)
	}
	// 发起方不能接受/拒绝自己的请求
	if rel.RequesterUuid == userUUID {
		return nil, utils.NewBizError(consts.CodePairForbidden)
	}

	peerUUID := rel.OtherParty(userUUID)

	switch req.Action {
	case "accept":
	case "reject":
		if err := s.pairRepo.TransitionStatus(ctx, rel.Id, model.RelationStatusPending, model.RelationStatusInactive); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return nil, utils.NewBizError(consts.CodeRelationNotPending)
			}
			logger.Error(ctx, "拒绝配对失败", logger.ErrorField("error", err))
			return nil, utils.NewBizError(consts.CodeInternalError)
		}
		s.pairRepo.InvalidateStatusCache(ctx, userUUID, peerUUID)

		s.publisher.PublishPairingEvent(ctx, events.PairingEvent{
			Type:       events.EventPairRejected,
			RelationID: rel.Id,
			ActorUUID:  userUUID,
			PeerUUID:   peerUUID,
		})
		return &dto.PairStatusResponse{State: dto.PairStateNone}, nil
	default:
		// DTO 层有 oneof 校验，这里兜底防绕过绑定的直接调用
		return nil, utils.NewBizError(consts.CodeParamError)
	}

	// 接受：事务内激活关系并绑定双方伴侣引用
	if err := s.pairRepo.AcceptAndLink(ctx, rel.Id, userUUID, peerUUID); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, utils.NewBizError(consts.CodeRelationNotPending)
		case errors.Is(err, repository.ErrPartnerOccupied):
			return nil, utils.NewBizError(consts.CodeAlreadyPaired)
		default:
			logger.Error(ctx, "接受配对失败", logger.ErrorField("error", err))
			return nil, utils.NewBizError(consts.CodeInternalError)
		}
	}

	// 同步失效本人缓存，紧接着的状态投影不能读到旧的 pending
	s.pairRepo.InvalidateStatusCache(ctx, userUUID, peerUUID)

	s.publisher.PublishPairingEvent(ctx, events.PairingEvent{
		Type:       events.EventPairAccepted,
		RelationID: rel.Id,
		ActorUUID:  userUUID,
		PeerUUID:   peerUUID,
	})

	return s.GetStatus(ctx, userUUID)
}

// CancelRequest 取消本人发起的配对请求
// 只有发起方可取消，取消进入 cancelled 终态并释放互斥键
func (s *pairingServiceImpl) CancelRequest(ctx context.Context, userUUID string, req *dto.CancelPairRequest) error {
	rel, err := s.pairRepo.GetRelationByID(ctx, req.RelationID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return utils.NewBizError(consts.CodeRelationNotFound)
		}
		logger.Error(ctx, "查询配对关系失败", logger.ErrorField("error", err))
		return utils.NewBizError(consts.CodeInternalError)
	}

	if rel.RequesterUuid != userUUID {
		return utils.NewBizError(consts.CodePairForbidden)
	}

	if err := s.pairRepo.TransitionStatus(ctx, rel.Id, model.RelationStatusPending, model.RelationStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return utils.NewBizError(consts.CodeRelationNotPending)
		}
		logger.Error(ctx, "取消配对失败", logger.ErrorField("error", err))
		return utils.NewBizError(consts.CodeInternalError)
	}

	peerUUID := rel.OtherParty(userUUID)
	s.pairRepo.InvalidateStatusCache(ctx, userUUID, peerUUID)

	s.publisher.PublishPairingEvent(ctx, events.PairingEvent{
		Type:       events.EventPairCancelled,
		RelationID: rel.Id,
		ActorUUID:  userUUID,
		PeerUUID:   peerUUID,
	})
	return nil
}

// Disconnect 解除当前生效的配对关系
// 先 CAS active->inactive 占住状态，再清理双方伴侣引用；
// 清理失败各重试一次，仍失败记 CodePartialDisconnect 日志（引用清理幂等，
// 后续任一方再次触发或人工补偿均可收敛）
func (s *pairingServiceImpl) Disconnect(ctx context.Context, userUUID string) error {
	user, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询用户失败", logger.ErrorField("error", err))
		return utils.NewBizError(consts.CodeInternalError)
	}
	if user == nil {
		return utils.NewBizError(consts.CodeUserNotFound)
	}
	if user.PartnerUuid == nil {
		return utils.NewBizError(consts.CodeNoActiveRelation)
	}
	partnerUUID := *user.PartnerUuid

	// 定位生效中的关系
	var relationID int64
	rel, err := s.pairRepo.GetLiveRelationByPairKey(ctx, model.PairKey(userUUID, partnerUUID))
	switch {
	case err == nil && rel.Status == model.RelationStatusActive:
		relationID = rel.Id
		if err := s.pairRepo.TransitionStatus(ctx, rel.Id, model.RelationStatusActive, model.RelationStatusInactive); err != nil {
			if !errors.Is(err, repository.ErrStatusConflict) {
				logger.Error(ctx, "解除配对状态迁移失败", logger.ErrorField("error", err))
				return utils.NewBizError(consts.CodeInternalError)
			}
			// 并发解除：对方已迁移状态，继续清理引用即可
		}
	case err == nil:
		// 有伴侣引用却只剩 pending 关系，数据异常，继续清引用自愈
		relationID = rel.Id
		logger.Error(ctx, "配对数据异常：伴侣引用指向非 active 关系",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
			logger.Int64("relation_id", rel.Id),
			logger.Int("status", int(rel.Status)),
		)
	case errors.Is(err, repository.ErrRecordNotFound):
		// 有伴侣引用却没有存活关系，数据异常，继续清引用自愈
		logger.Error(ctx, "配对数据异常：伴侣引用无对应存活关系",
			logger.String("user_uuid", utils.MaskUUID(userUUID)),
		)
	default:
		logger.Error(ctx, "查询存活关系失败", logger.ErrorField("error", err))
		return utils.NewBizError(consts.CodeInternalError)
	}

	// 清理双方伴侣引用，各重试一次
	s.clearPartnerRefWithRetry(ctx, userUUID, partnerUUID)
	s.clearPartnerRefWithRetry(ctx, partnerUUID, userUUID)

	s.publisher.PublishPairingEvent(ctx, events.PairingEvent{
		Type:       events.EventPairDisconnected,
		RelationID: relationID,
		ActorUUID:  userUUID,
		PeerUUID:   partnerUUID,
	})
	return nil
}

// clearPartnerRefWithRetry 清除伴侣引用，失败重试一次
// 状态已迁移成终态，引用清理失败只能前进不能回滚，残留交给日志报警
func (s *pairingServiceImpl) clearPartnerRefWithRetry(ctx context.Context, userUUID, expectedPartner string) {
	err := s.pairRepo.ClearPartnerRef(ctx, userUUID, expectedPartner)
	if err == nil {
		return
	}
	if err = s.pairRepo.ClearPartnerRef(ctx, userUUID, expectedPartner); err == nil {
		return
	}
	logger.Error(ctx, "解除配对后清理伴侣引用失败",
		logger.Int("code", consts.CodePartialDisconnect),
		logger.String("user_uuid", utils.MaskUUID(userUUID)),
		logger.ErrorField("error", err),
	)
}

// GetStatus 获取本人当前配对状态投影
// 投影规则：
//   - partner_uuid 非空 -> active
//   - 否则看 pending 关系，按发起方向给出 pending_sent / pending_received
//   - 多条 pending 时取最近发起的一条并记异常日志
//   - 都没有 -> none
func (s *pairingServiceImpl) GetStatus(ctx context.Context, userUUID string) (*dto.PairStatusResponse, error) {
	// 1. 读缓存
	if cached, err := s.pairRepo.GetStatusCache(ctx, userUUID); err == nil {
		var status dto.PairStatusResponse
		if jsonErr := json.Unmarshal([]byte(cached), &status); jsonErr == nil {
			return &status, nil
		}
	}

	// 2. 回源投影
	user, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询用户失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if user == nil {
		return nil, utils.NewBizError(consts.CodeUserNotFound)
	}

	status, err := s.projectStatus(ctx, user)
	if err != nil {
		return nil, err
	}

	// 3. 回填缓存
	if payload, jsonErr := json.Marshal(status); jsonErr == nil {
		s.pairRepo.SetStatusCache(ctx, userUUID, string(payload))
	}
	return status, nil
}

// projectStatus 从数据库状态投影出配对状态
func (s *pairingServiceImpl) projectStatus(ctx context.Context, user *model.UserInfo) (*dto.PairStatusResponse, error) {
	// active: 伴侣引用为准
	if user.PartnerUuid != nil {
		partnerUUID := *user.PartnerUuid
		status := &dto.PairStatusResponse{
			State:   dto.PairStateActive,
			Partner: s.loadPartner(ctx, partnerUUID),
		}

		rel, err := s.pairRepo.GetLiveRelationByPairKey(ctx, model.PairKey(user.Uuid, partnerUUID))
		if err == nil && rel.Status == model.RelationStatusActive {
			status.RelationID = rel.Id
			status.RequestedAt = rel.RequestedAt.Unix()
			if rel.AcceptedAt != nil {
				status.AcceptedAt = rel.AcceptedAt.Unix()
			}
		} else {
			logger.Error(ctx, "配对数据异常：伴侣引用无对应 active 关系",
				logger.String("user_uuid", utils.MaskUUID(user.Uuid)),
			)
		}
		return status, nil
	}

	// pending: 按最近发起的一条投影
	pendings, err := s.pairRepo.ListPendingByUser(ctx, user.Uuid)
	if err != nil {
		logger.Error(ctx, "查询待处理配对失败", logger.ErrorField("error", err))
		return nil, utils.NewBizError(consts.CodeInternalError)
	}
	if len(pendings) == 0 {
		return &dto.PairStatusResponse{State: dto.PairStateNone}, nil
	}
	if len(pendings) > 1 {
		logger.Warn(ctx, "用户存在多条待处理配对，按最近一条投影",
			logger.String("user_uuid", utils.MaskUUID(user.Uuid)),
			logger.Int("count", len(pendings)),
		)
	}

	rel := pendings[0]
	state := dto.PairStatePendingReceived
	if rel.RequesterUuid == user.Uuid {
		state = dto.PairStatePendingSent
	}
	return &dto.PairStatusResponse{
		State:       state,
		RelationID:  rel.Id,
		Partner:     s.loadPartner(ctx, rel.OtherParty(user.Uuid)),
		RequestedAt: rel.RequestedAt.Unix(),
	}, nil
}

// loadPartner 加载对方展示信息，失败降级为只有 uuid
func (s *pairingServiceImpl) loadPartner(ctx context.Context, partnerUUID string) *dto.PairPartner {
	partner, err := s.userRepo.GetByUUID(ctx, partnerUUID)
	if err != nil || partner == nil {
		return &dto.PairPartner{UUID: partnerUUID}
	}
	return &dto.PairPartner{
		UUID:     partner.Uuid,
		Nickname: partner.Nickname,
		Avatar:   partner.Avatar,
	}
}
