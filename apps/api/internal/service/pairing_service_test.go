package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"DietServer/apps/api/internal/dto"
	"DietServer/apps/api/internal/events"
	"DietServer/apps/api/internal/repository"
	"DietServer/apps/api/internal/utils"
	"DietServer/consts"
	"DietServer/model"
	"DietServer/pkg/logger"
	"DietServer/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pairingTestInitOnce sync.Once

func initPairingTestEnv() {
	pairingTestInitOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		_ = util.InitSnowflake(1)
	})
}

func requirePairBizCode(t *testing.T, err error, wantCode int) {
	t.Helper()
	require.Error(t, err)
	var bizErr *utils.BizError
	require.True(t, errors.As(err, &bizErr))
	require.Equal(t, wantCode, bizErr.Code)
}

func strPtr(s string) *string { return &s }

type fakeUserRepoForPairing struct {
	getByUUIDFn     func(context.Context, string) (*model.UserInfo, error)
	getByEmailFn    func(context.Context, string) (*model.UserInfo, error)
	updateProfileFn func(context.Context, string, string, string) error
}

func (f *fakeUserRepoForPairing) GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error) {
	if f.getByUUIDFn == nil {
		return nil, nil
	}
	return f.getByUUIDFn(ctx, uuid)
}

func (f *fakeUserRepoForPairing) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	if f.getByEmailFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUserRepoForPairing) UpdateProfile(ctx context.Context, userUUID, nickname, avatar string) error {
	if f.updateProfileFn == nil {
		return nil
	}
	return f.updateProfileFn(ctx, userUUID, nickname, avatar)
}

type fakePairRepoForService struct {
	getRelationByIDFn          func(context.Context, int64) (*model.CoupleRelation, error)
	getLiveRelationByPairKeyFn func(context.Context, string) (*model.CoupleRelation, error)
	listPendingByUserFn        func(context.Context, string) ([]*model.CoupleRelation, error)
	createRelationFn           func(context.Context, *model.CoupleRelation) error
	transitionStatusFn         func(context.Context, int64, int8, int8) error
	acceptAndLinkFn            func(context.Context, int64, string, string) error
	clearPartnerRefFn          func(context.Context, string, string) error
	getStatusCacheFn           func(context.Context, string) (string, error)
	setStatusCacheFn           func(context.Context, string, string)
	invalidateStatusCacheFn    func(context.Context, ...string)
}

func (f *fakePairRepoForService) GetRelationByID(ctx context.Context, id int64) (*model.CoupleRelation, error) {
	if f.getRelationByIDFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getRelationByIDFn(ctx, id)
}

func (f *fakePairRepoForService) GetLiveRelationByPairKey(ctx context.Context, pairKey string) (*model.CoupleRelation, error) {
	if f.getLiveRelationByPairKeyFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getLiveRelationByPairKeyFn(ctx, pairKey)
}

func (f *fakePairRepoForService) ListPendingByUser(ctx context.Context, userUUID string) ([]*model.CoupleRelation, error) {
	if f.listPendingByUserFn == nil {
		return nil, nil
	}
	return f.listPendingByUserFn(ctx, userUUID)
}

func (f *fakePairRepoForService) CreateRelation(ctx context.Context, rel *model.CoupleRelation) error {
	if f.createRelationFn == nil {
		return nil
	}
	return f.createRelationFn(ctx, rel)
}

func (f *fakePairRepoForService) TransitionStatus(ctx context.Context, id int64, expected, next int8) error {
	if f.transitionStatusFn == nil {
		return nil
	}
	return f.transitionStatusFn(ctx, id, expected, next)
}

func (f *fakePairRepoForService) AcceptAndLink(ctx context.Context, relationID int64, userA, userB string) error {
	if f.acceptAndLinkFn == nil {
		return nil
	}
	return f.acceptAndLinkFn(ctx, relationID, userA, userB)
}

func (f *fakePairRepoForService) ClearPartnerRef(ctx context.Context, userUUID, expectedPartner string) error {
	if f.clearPartnerRefFn == nil {
		return nil
	}
	return f.clearPartnerRefFn(ctx, userUUID, expectedPartner)
}

func (f *fakePairRepoForService) GetStatusCache(ctx context.Context, userUUID string) (string, error) {
	if f.getStatusCacheFn == nil {
		return "", repository.ErrRedisNil
	}
	return f.getStatusCacheFn(ctx, userUUID)
}

func (f *fakePairRepoForService) SetStatusCache(ctx context.Context, userUUID, payload string) {
	if f.setStatusCacheFn != nil {
		f.setStatusCacheFn(ctx, userUUID, payload)
	}
}

func (f *fakePairRepoForService) InvalidateStatusCache(ctx context.Context, userUUIDs ...string) {
	if f.invalidateStatusCacheFn != nil {
		f.invalidateStatusCacheFn(ctx, userUUIDs...)
	}
}

type fakePublisher struct {
	events []events.PairingEvent
}

func (f *fakePublisher) PublishPairingEvent(_ context.Context, event events.PairingEvent) {
	f.events = append(f.events, event)
}

// userRepoWithUsers 构造按 uuid/email 查表的用户仓储
func userRepoWithUsers(users ...*model.UserInfo) *fakeUserRepoForPairing {
	return &fakeUserRepoForPairing{
		getByUUIDFn: func(_ context.Context, uuid string) (*model.UserInfo, error) {
			for _, u := range users {
				if u.Uuid == uuid {
					return u, nil
				}
			}
			return nil, nil
		},
		getByEmailFn: func(_ context.Context, email string) (*model.UserInfo, error) {
			for _, u := range users {
				if u.Email == email {
					return u, nil
				}
			}
			return nil, repository.ErrRecordNotFound
		},
	}
}

func TestPairingServiceSendRequest(t *testing.T) {
	initPairingTestEnv()

	alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com", Nickname: "Alice"}
	bob := &model.UserInfo{Uuid: "uuid-bob", Email: "bob@test.com", Nickname: "Bob"}

	t.Run("partner_email_not_registered", func(t *testing.T) {
		svc := NewPairingService(userRepoWithUsers(alice), &fakePairRepoForService{}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: "nobody@test.com"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeUserNotFound)
	})

	t.Run("self_pairing", func(t *testing.T) {
		svc := NewPairingService(userRepoWithUsers(alice), &fakePairRepoForService{}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: alice.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeSelfPairing)
	})

	t.Run("requester_already_paired", func(t *testing.T) {
		paired := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com", PartnerUuid: strPtr("uuid-carol")}
		svc := NewPairingService(userRepoWithUsers(paired, bob), &fakePairRepoForService{}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), paired.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeAlreadyPaired)
	})

	t.Run("target_already_paired", func(t *testing.T) {
		pairedBob := &model.UserInfo{Uuid: "uuid-bob", Email: "bob@test.com", PartnerUuid: strPtr("uuid-carol")}
		svc := NewPairingService(userRepoWithUsers(alice, pairedBob), &fakePairRepoForService{}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: pairedBob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeAlreadyPaired)
	})

	t.Run("duplicate_pending_same_direction", func(t *testing.T) {
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, pairKey string) (*model.CoupleRelation, error) {
				assert.Equal(t, model.PairKey(alice.Uuid, bob.Uuid), pairKey)
				return &model.CoupleRelation{
					Id: 1, User1Uuid: alice.Uuid, User2Uuid: bob.Uuid,
					RequesterUuid: alice.Uuid, Status: model.RelationStatusPending,
				}, nil
			},
		}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePairRequestAlreadySent)
	})

	t.Run("duplicate_pending_reverse_direction", func(t *testing.T) {
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return &model.CoupleRelation{
					Id: 1, User1Uuid: bob.Uuid, User2Uuid: alice.Uuid,
					RequesterUuid: bob.Uuid, Status: model.RelationStatusPending,
				}, nil
			},
		}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePairRequestAlreadyReceived)
	})

	t.Run("live_active_relation_exists", func(t *testing.T) {
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return &model.CoupleRelation{
					Id: 1, User1Uuid: alice.Uuid, User2Uuid: bob.Uuid,
					RequesterUuid: alice.Uuid, Status: model.RelationStatusActive,
				}, nil
			},
		}, &fakePublisher{})
		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeAlreadyPaired)
	})

	t.Run("success", func(t *testing.T) {
		var created *model.CoupleRelation
		pub := &fakePublisher{}
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			createRelationFn: func(_ context.Context, rel *model.CoupleRelation) error {
				created = rel
				return nil
			},
		}, pub)

		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.NoError(t, err)
		require.NotNil(t, resp)
		require.NotNil(t, created)

		assert.Equal(t, alice.Uuid, created.RequesterUuid)
		assert.Equal(t, model.RelationStatusPending, created.Status)
		require.NotNil(t, created.ExclusiveKey)
		// 互斥键归一化：字典序小者在前
		assert.Equal(t, "uuid-alice:uuid-bob", *created.ExclusiveKey)
		assert.NotZero(t, created.Id)

		assert.Equal(t, created.Id, resp.RelationID)
		assert.Equal(t, bob.Uuid, resp.PartnerUUID)
		assert.Equal(t, "Bob", resp.PartnerNickname)
		assert.NotZero(t, resp.RequestedAt)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventPairRequested, pub.events[0].Type)
		assert.Equal(t, alice.Uuid, pub.events[0].ActorUUID)
		assert.Equal(t, bob.Uuid, pub.events[0].PeerUUID)
	})

	t.Run("concurrent_create_hits_unique_index", func(t *testing.T) {
		// 并发发起：落库被唯一索引拦下，回查给出方向化错误
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func() func(context.Context, string) (*model.CoupleRelation, error) {
				calls := 0
				return func(_ context.Context, _ string) (*model.CoupleRelation, error) {
					calls++
					if calls == 1 {
						return nil, repository.ErrRecordNotFound
					}
					return &model.CoupleRelation{
						Id: 7, User1Uuid: bob.Uuid, User2Uuid: alice.Uuid,
						RequesterUuid: bob.Uuid, Status: model.RelationStatusPending,
					}, nil
				}
			}(),
			createRelationFn: func(_ context.Context, _ *model.CoupleRelation) error {
				return repository.ErrDuplicateKey
			},
		}, &fakePublisher{})

		resp, err := svc.SendRequest(context.Background(), alice.Uuid, &dto.SendPairRequest{PartnerEmail: bob.Email})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePairRequestAlreadyReceived)
	})
}

func TestPairingServiceRespondRequest(t *testing.T) {
	initPairingTestEnv()

	pendingRel := func() *model.CoupleRelation {
		return &model.CoupleRelation{
			Id: 100, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob",
			RequesterUuid: "uuid-alice", Status: model.RelationStatusPending,
			RequestedAt: time.Unix(1700000000, 0),
		}
	}

	t.Run("relation_not_found", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeRelationNotFound)
	})

	t.Run("not_a_member", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-eve", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePairForbidden)
	})

	t.Run("requester_cannot_respond_own_request", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-alice", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodePairForbidden)
	})

	t.Run("unknown_action_rejected", func(t *testing.T) {
		// 绕过 DTO 绑定直接调用时，未知动作不能落到接受分支
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
			acceptAndLinkFn: func(_ context.Context, _ int64, _, _ string) error {
				t.Fatal("未知动作不应触发接受事务")
				return nil
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "maybe"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeParamError)
	})

	t.Run("reject_success", func(t *testing.T) {
		var transArgs []int8
		var invalidated []string
		pub := &fakePublisher{}
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, id int64) (*model.CoupleRelation, error) {
				assert.Equal(t, int64(100), id)
				return pendingRel(), nil
			},
			transitionStatusFn: func(_ context.Context, id int64, expected, next int8) error {
				assert.Equal(t, int64(100), id)
				transArgs = []int8{expected, next}
				return nil
			},
			invalidateStatusCacheFn: func(_ context.Context, uuids ...string) {
				invalidated = append(invalidated, uuids...)
			},
		}, pub)

		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "reject"})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, dto.PairStateNone, resp.State)
		assert.Equal(t, []int8{model.RelationStatusPending, model.RelationStatusInactive}, transArgs)
		assert.ElementsMatch(t, []string{"uuid-alice", "uuid-bob"}, invalidated)
		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventPairRejected, pub.events[0].Type)
	})

	t.Run("reject_already_handled", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
			transitionStatusFn: func(_ context.Context, _ int64, _, _ int8) error {
				return repository.ErrStatusConflict
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "reject"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeRelationNotPending)
	})

	t.Run("accept_success_projects_active", func(t *testing.T) {
		acceptedAt := time.Unix(1700001000, 0)
		bob := &model.UserInfo{Uuid: "uuid-bob", Email: "bob@test.com", PartnerUuid: strPtr("uuid-alice")}
		alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com", Nickname: "Alice", Avatar: "http://a/1.png"}

		var linkArgs []string
		pub := &fakePublisher{}
		svc := NewPairingService(userRepoWithUsers(alice, bob), &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
			acceptAndLinkFn: func(_ context.Context, relationID int64, userA, userB string) error {
				assert.Equal(t, int64(100), relationID)
				linkArgs = []string{userA, userB}
				return nil
			},
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				rel := pendingRel()
				rel.Status = model.RelationStatusActive
				rel.AcceptedAt = &acceptedAt
				return rel, nil
			},
		}, pub)

		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, []string{"uuid-bob", "uuid-alice"}, linkArgs)
		assert.Equal(t, dto.PairStateActive, resp.State)
		assert.Equal(t, int64(100), resp.RelationID)
		require.NotNil(t, resp.Partner)
		assert.Equal(t, "uuid-alice", resp.Partner.UUID)
		assert.Equal(t, "Alice", resp.Partner.Nickname)
		assert.Equal(t, acceptedAt.Unix(), resp.AcceptedAt)
		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventPairAccepted, pub.events[0].Type)
	})

	t.Run("accept_relation_no_longer_pending", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
			acceptAndLinkFn: func(_ context.Context, _ int64, _, _ string) error {
				return repository.ErrStatusConflict
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeRelationNotPending)
	})

	t.Run("accept_partner_slot_occupied", func(t *testing.T) {
		// 并发接受另一条请求已成功，伴侣位守门拦下本次接受
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return pendingRel(), nil
			},
			acceptAndLinkFn: func(_ context.Context, _ int64, _, _ string) error {
				return repository.ErrPartnerOccupied
			},
		}, &fakePublisher{})
		resp, err := svc.RespondRequest(context.Background(), "uuid-bob", &dto.RespondPairRequest{RelationID: 100, Action: "accept"})
		require.Nil(t, resp)
		requirePairBizCode(t, err, consts.CodeAlreadyPaired)
	})
}

func TestPairingServiceCancelRequest(t *testing.T) {
	initPairingTestEnv()

	rel := &model.CoupleRelation{
		Id: 200, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob",
		RequesterUuid: "uuid-alice", Status: model.RelationStatusPending,
	}

	t.Run("only_requester_can_cancel", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return rel, nil
			},
		}, &fakePublisher{})
		err := svc.CancelRequest(context.Background(), "uuid-bob", &dto.CancelPairRequest{RelationID: 200})
		requirePairBizCode(t, err, consts.CodePairForbidden)
	})

	t.Run("success_enters_cancelled", func(t *testing.T) {
		var transArgs []int8
		pub := &fakePublisher{}
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return rel, nil
			},
			transitionStatusFn: func(_ context.Context, _ int64, expected, next int8) error {
				transArgs = []int8{expected, next}
				return nil
			},
		}, pub)

		err := svc.CancelRequest(context.Background(), "uuid-alice", &dto.CancelPairRequest{RelationID: 200})
		require.NoError(t, err)
		assert.Equal(t, []int8{model.RelationStatusPending, model.RelationStatusCancelled}, transArgs)
		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventPairCancelled, pub.events[0].Type)
	})

	t.Run("already_handled", func(t *testing.T) {
		svc := NewPairingService(&fakeUserRepoForPairing{}, &fakePairRepoForService{
			getRelationByIDFn: func(_ context.Context, _ int64) (*model.CoupleRelation, error) {
				return rel, nil
			},
			transitionStatusFn: func(_ context.Context, _ int64, _, _ int8) error {
				return repository.ErrStatusConflict
			},
		}, &fakePublisher{})
		err := svc.CancelRequest(context.Background(), "uuid-alice", &dto.CancelPairRequest{RelationID: 200})
		requirePairBizCode(t, err, consts.CodeRelationNotPending)
	})
}

func TestPairingServiceDisconnect(t *testing.T) {
	initPairingTestEnv()

	pairedAlice := func() *model.UserInfo {
		return &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com", PartnerUuid: strPtr("uuid-bob")}
	}
	activeRel := func() *model.CoupleRelation {
		return &model.CoupleRelation{
			Id: 300, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob",
			RequesterUuid: "uuid-alice", Status: model.RelationStatusActive,
		}
	}

	t.Run("no_active_relation", func(t *testing.T) {
		single := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com"}
		svc := NewPairingService(userRepoWithUsers(single), &fakePairRepoForService{}, &fakePublisher{})
		err := svc.Disconnect(context.Background(), "uuid-alice")
		requirePairBizCode(t, err, consts.CodeNoActiveRelation)
	})

	t.Run("success_clears_both_sides", func(t *testing.T) {
		var cleared [][]string
		var transArgs []int8
		pub := &fakePublisher{}
		svc := NewPairingService(userRepoWithUsers(pairedAlice()), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, pairKey string) (*model.CoupleRelation, error) {
				assert.Equal(t, "uuid-alice:uuid-bob", pairKey)
				return activeRel(), nil
			},
			transitionStatusFn: func(_ context.Context, id int64, expected, next int8) error {
				assert.Equal(t, int64(300), id)
				transArgs = []int8{expected, next}
				return nil
			},
			clearPartnerRefFn: func(_ context.Context, userUUID, expectedPartner string) error {
				cleared = append(cleared, []string{userUUID, expectedPartner})
				return nil
			},
		}, pub)

		err := svc.Disconnect(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, []int8{model.RelationStatusActive, model.RelationStatusInactive}, transArgs)
		require.Len(t, cleared, 2)
		assert.Equal(t, []string{"uuid-alice", "uuid-bob"}, cleared[0])
		assert.Equal(t, []string{"uuid-bob", "uuid-alice"}, cleared[1])
		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventPairDisconnected, pub.events[0].Type)
		assert.Equal(t, int64(300), pub.events[0].RelationID)
	})

	t.Run("concurrent_disconnect_still_clears_refs", func(t *testing.T) {
		// 对方已并发迁移状态，CAS 失败不终止，继续清理引用收敛
		var cleared int
		svc := NewPairingService(userRepoWithUsers(pairedAlice()), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return activeRel(), nil
			},
			transitionStatusFn: func(_ context.Context, _ int64, _, _ int8) error {
				return repository.ErrStatusConflict
			},
			clearPartnerRefFn: func(_ context.Context, _, _ string) error {
				cleared++
				return nil
			},
		}, &fakePublisher{})

		err := svc.Disconnect(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, 2, cleared)
	})

	t.Run("clear_ref_failure_retries_once", func(t *testing.T) {
		attempts := map[string]int{}
		svc := NewPairingService(userRepoWithUsers(pairedAlice()), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return activeRel(), nil
			},
			clearPartnerRefFn: func(_ context.Context, userUUID, _ string) error {
				attempts[userUUID]++
				if userUUID == "uuid-bob" && attempts[userUUID] == 1 {
					return errors.New("db timeout")
				}
				return nil
			},
		}, &fakePublisher{})

		err := svc.Disconnect(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, 1, attempts["uuid-alice"])
		assert.Equal(t, 2, attempts["uuid-bob"])
	})

	t.Run("anomaly_partner_ref_without_live_relation", func(t *testing.T) {
		// 引用残留但没有存活关系：清引用自愈，不报错
		var cleared int
		svc := NewPairingService(userRepoWithUsers(pairedAlice()), &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return nil, repository.ErrRecordNotFound
			},
			clearPartnerRefFn: func(_ context.Context, _, _ string) error {
				cleared++
				return nil
			},
		}, &fakePublisher{})

		err := svc.Disconnect(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, 2, cleared)
	})
}

func TestPairingServiceGetStatus(t *testing.T) {
	initPairingTestEnv()

	t.Run("cache_hit", func(t *testing.T) {
		cached := &dto.PairStatusResponse{State: dto.PairStateActive, RelationID: 42}
		payload, err := json.Marshal(cached)
		require.NoError(t, err)

		svc := NewPairingService(&fakeUserRepoForPairing{
			getByUUIDFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				t.Fatal("缓存命中不应回源")
				return nil, nil
			},
		}, &fakePairRepoForService{
			getStatusCacheFn: func(_ context.Context, _ string) (string, error) {
				return string(payload), nil
			},
		}, &fakePublisher{})

		resp, err := svc.GetStatus(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStateActive, resp.State)
		assert.Equal(t, int64(42), resp.RelationID)
	})

	t.Run("none_and_backfills_cache", func(t *testing.T) {
		var cachedPayload string
		alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com"}
		svc := NewPairingService(userRepoWithUsers(alice), &fakePairRepoForService{
			setStatusCacheFn: func(_ context.Context, userUUID, payload string) {
				assert.Equal(t, "uuid-alice", userUUID)
				cachedPayload = payload
			},
		}, &fakePublisher{})

		resp, err := svc.GetStatus(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStateNone, resp.State)
		assert.Zero(t, resp.RelationID)
		assert.Nil(t, resp.Partner)
		assert.Contains(t, cachedPayload, dto.PairStateNone)
	})

	t.Run("pending_sent_and_received", func(t *testing.T) {
		alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com"}
		bob := &model.UserInfo{Uuid: "uuid-bob", Email: "bob@test.com", Nickname: "Bob"}
		rel := &model.CoupleRelation{
			Id: 500, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob",
			RequesterUuid: "uuid-alice", Status: model.RelationStatusPending,
			RequestedAt: time.Unix(1700000000, 0),
		}
		pairRepo := &fakePairRepoForService{
			listPendingByUserFn: func(_ context.Context, _ string) ([]*model.CoupleRelation, error) {
				return []*model.CoupleRelation{rel}, nil
			},
		}
		svc := NewPairingService(userRepoWithUsers(alice, bob), pairRepo, &fakePublisher{})

		sentResp, err := svc.GetStatus(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStatePendingSent, sentResp.State)
		assert.Equal(t, int64(500), sentResp.RelationID)
		require.NotNil(t, sentResp.Partner)
		assert.Equal(t, "uuid-bob", sentResp.Partner.UUID)
		assert.Equal(t, "Bob", sentResp.Partner.Nickname)

		recvResp, err := svc.GetStatus(context.Background(), "uuid-bob")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStatePendingReceived, recvResp.State)
		assert.Equal(t, "uuid-alice", recvResp.Partner.UUID)
	})

	t.Run("multiple_pendings_takes_latest", func(t *testing.T) {
		alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com"}
		// 仓储按 requested_at 倒序返回，投影取第一条
		svc := NewPairingService(userRepoWithUsers(alice), &fakePairRepoForService{
			listPendingByUserFn: func(_ context.Context, _ string) ([]*model.CoupleRelation, error) {
				return []*model.CoupleRelation{
					{Id: 502, User1Uuid: "uuid-alice", User2Uuid: "uuid-carol", RequesterUuid: "uuid-carol",
						Status: model.RelationStatusPending, RequestedAt: time.Unix(1700002000, 0)},
					{Id: 501, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob", RequesterUuid: "uuid-alice",
						Status: model.RelationStatusPending, RequestedAt: time.Unix(1700001000, 0)},
				}, nil
			},
		}, &fakePublisher{})

		resp, err := svc.GetStatus(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStatePendingReceived, resp.State)
		assert.Equal(t, int64(502), resp.RelationID)
		assert.Equal(t, "uuid-carol", resp.Partner.UUID)
	})

	t.Run("active_partner_lookup_degrades", func(t *testing.T) {
		// 对方信息加载失败只降级为 uuid，不影响状态投影
		alice := &model.UserInfo{Uuid: "uuid-alice", Email: "alice@test.com", PartnerUuid: strPtr("uuid-bob")}
		svc := NewPairingService(&fakeUserRepoForPairing{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.UserInfo, error) {
				if uuid == "uuid-alice" {
					return alice, nil
				}
				return nil, errors.New("db timeout")
			},
		}, &fakePairRepoForService{
			getLiveRelationByPairKeyFn: func(_ context.Context, _ string) (*model.CoupleRelation, error) {
				return &model.CoupleRelation{
					Id: 600, User1Uuid: "uuid-alice", User2Uuid: "uuid-bob",
					RequesterUuid: "uuid-alice", Status: model.RelationStatusActive,
					RequestedAt: time.Unix(1700000000, 0),
				}, nil
			},
		}, &fakePublisher{})

		resp, err := svc.GetStatus(context.Background(), "uuid-alice")
		require.NoError(t, err)
		assert.Equal(t, dto.PairStateActive, resp.State)
		assert.Equal(t, int64(600), resp.RelationID)
		require.NotNil(t, resp.Partner)
		assert.Equal(t, "uuid-bob", resp.Partner.UUID)
		assert.Empty(t, resp.Partner.Nickname)
	})
}
